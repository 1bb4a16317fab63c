package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/agrovoice/agrovoice/internal/api"
	"github.com/agrovoice/agrovoice/internal/cleanup"
	"github.com/agrovoice/agrovoice/internal/config"
	"github.com/agrovoice/agrovoice/internal/intent"
	"github.com/agrovoice/agrovoice/internal/language"
	"github.com/agrovoice/agrovoice/internal/ollama"
	"github.com/agrovoice/agrovoice/internal/pipeline"
	"github.com/agrovoice/agrovoice/internal/speech"
	"github.com/agrovoice/agrovoice/internal/storage"
	"github.com/agrovoice/agrovoice/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the agrovoice server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running agrovoice server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show agrovoice system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "agrovoice.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "agrovoice version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// Check if a server is already running via its health endpoint.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("agrovoice is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("agrovoice is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Check model readiness, pulling the chat model if missing.
	ollamaClient := ollama.New(cfg.Ollama.BaseURL)
	if err := ollama.EnsureReady(ctx, ollamaClient, cfg.Ollama.ChatModel, os.Stderr); err != nil {
		return err
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	media, err := pipeline.NewMediaDir(cfg.Storage.DataDir)
	if err != nil {
		return err
	}

	var transcriber speech.Transcriber
	if cfg.Speech.ASRURL != "" {
		transcriber = speech.NewWhisperServer(cfg.Speech.ASRURL)
	}
	synth := selectSynthesizer(ctx, cfg.Speech)

	assistant := pipeline.New(pipeline.Deps{
		Store:       store,
		Chat:        ollamaClient,
		Model:       cfg.Ollama.ChatModel,
		Classifier:  intent.NewClassifier(ollamaClient, cfg.Ollama.ChatModel),
		Detector:    language.NewDetector(),
		Transcriber: transcriber,
		Synthesizer: synth,
		Media:       media,
	})

	handler := api.NewHandler(api.AppDeps{
		Assistant: assistant,
		Store:     store,
		Media:     media,
		Ollama:    ollamaClient,
		Model:     cfg.Ollama.ChatModel,
		Synth:     synth,
		Token:     cfg.Server.Token,
		UI:        web.Handler(),
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	worker := cleanup.NewWorker(
		store,
		time.Duration(cfg.Cleanup.MaxAgeDays)*24*time.Hour,
		cfg.Cleanup.MaxSessions,
		time.Duration(cfg.Cleanup.IntervalHours)*time.Hour,
	)

	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Store:     store,
		Assistant: assistant,
	})
	stdioSrv := server.NewStdioServer(mcpSrv)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		fmt.Fprintf(os.Stderr, "agrovoice listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		worker.Run(gctx)
		return nil
	})

	g.Go(func() error {
		if err := stdioSrv.Listen(gctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	slog.Info("MCP server started (stdio transport)")

	return g.Wait()
}

// selectSynthesizer picks the TTS engine from config: a fixed engine, or
// health-checked preference for Coqui with espeak-ng fallback.
func selectSynthesizer(ctx context.Context, cfg config.SpeechConfig) speech.Synthesizer {
	switch cfg.Engine {
	case "off":
		return nil
	case "coqui":
		return speech.NewCoquiServer(cfg.TTSURL)
	case "espeak":
		return speech.NewESpeak()
	default:
		return speech.Select(ctx, speech.NewCoquiServer(cfg.TTSURL), speech.NewESpeak())
	}
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("agrovoice is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop agrovoice (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to agrovoice (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	running := false
	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		defer resp.Body.Close()
		if resp.StatusCode == 200 {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
			var health struct {
				Model string `json:"model"`
				TTS   string `json:"tts"`
			}
			if json.NewDecoder(resp.Body).Decode(&health) == nil {
				printStatus("Model", "%s", health.Model)
				printStatus("TTS engine", "%s", health.TTS)
			}
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	ollamaResp, err := client.Get(cfg.Ollama.BaseURL + "/api/version")
	if err != nil {
		printStatus("Ollama", "not running")
	} else {
		ollamaResp.Body.Close()
		printStatus("Ollama", "running at %s", cfg.Ollama.BaseURL)
	}

	if running {
		statsResp, err := apiGet(client, serverURL+"/stats", cfg.Server.Token)
		if err == nil {
			var stats struct {
				TotalSessions int `json:"total_sessions"`
				TotalTurns    int `json:"total_turns"`
			}
			if json.NewDecoder(statsResp.Body).Decode(&stats) == nil {
				printStatus("Sessions", "%d", stats.TotalSessions)
				printStatus("Turns", "%d", stats.TotalTurns)
			}
			statsResp.Body.Close()
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func apiGet(client *http.Client, url, token string) (*http.Response, error) {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return client.Do(req)
}
