package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agrovoice/agrovoice/internal/config"
	"github.com/agrovoice/agrovoice/internal/language"
	"github.com/agrovoice/agrovoice/internal/pipeline"
)

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask the assistant a question",
	Long: `Ask the assistant a question.

Examples:
  agrovoice ask "What fertilizer should I use for rice?"
  agrovoice ask --image ./leaf.jpg "What is wrong with this plant?"
  agrovoice ask --audio ./question.wav
  agrovoice ask --session 4f7c... "And how often should I apply it?"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		sessionID, _ := cmd.Flags().GetString("session")
		imagePath, _ := cmd.Flags().GetString("image")
		audioPath, _ := cmd.Flags().GetString("audio")

		if text == "" && imagePath == "" && audioPath == "" {
			return fmt.Errorf("provide a question, --image, or --audio")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		// Text-only questions go as plain JSON; attachments need multipart.
		var resp *http.Response
		if imagePath == "" && audioPath == "" {
			resp, err = client.post(cmd.Context(), "/analyze",
				map[string]string{"session_id": sessionID, "text": text})
		} else {
			resp, err = client.postMultipart(cmd.Context(), "/analyze",
				map[string]string{"session_id": sessionID, "text": text},
				map[string]string{"image": imagePath, "audio": audioPath},
			)
		}
		if err != nil {
			return err
		}

		var result struct {
			pipeline.Response
			AudioURL string `json:"audio_url"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if result.Transcript != "" {
			printStep("Heard: %s", result.Transcript)
		}
		fmt.Println(result.Reply)
		printStatus("Session", "%s", result.SessionID)
		printStatus("Intent", "%s", result.Intent)
		printStatus("Language", "%s (%s)", result.Language.Name, result.Language.Code)
		if result.AudioURL != "" {
			printStatus("Audio", "%s%s", client.baseURL, result.AudioURL)
		}
		return nil
	},
}

func init() {
	askCmd.Flags().String("session", "", "session ID to continue")
	askCmd.Flags().String("image", "", "path to a field photo to attach")
	askCmd.Flags().String("audio", "", "path to a WAV voice note to attach")
}

// --- sessions ---

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage chat sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/sessions?limit=%d", limit))
		if err != nil {
			return err
		}

		var sessions []struct {
			ID        string `json:"id"`
			Title     string `json:"title"`
			Language  string `json:"language"`
			TurnCount int    `json:"turn_count"`
			UpdatedAt string `json:"updated_at"`
		}
		if err := decodeJSON(resp, &sessions); err != nil {
			return err
		}

		if len(sessions) == 0 {
			fmt.Println("No sessions found.")
			return nil
		}

		for _, s := range sessions {
			title := s.Title
			if title == "" {
				title = "(untitled)"
			}
			fmt.Printf("%s  %s  %2d turns  [%s]  %s\n",
				colorize(colorCyan, shortID(s.ID)),
				s.UpdatedAt,
				s.TurnCount,
				s.Language,
				title,
			)
		}
		return nil
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a session transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/sessions/"+args[0])
		if err != nil {
			return err
		}

		var detail struct {
			Session struct {
				Title    string `json:"title"`
				Language string `json:"language"`
			} `json:"session"`
			Turns []struct {
				Role     string `json:"role"`
				Modality string `json:"modality"`
				Intent   string `json:"intent"`
				Content  string `json:"content"`
			} `json:"turns"`
		}
		if err := decodeJSON(resp, &detail); err != nil {
			return err
		}

		fmt.Printf("%s [%s]\n\n", colorize(colorBold, detail.Session.Title), detail.Session.Language)
		for _, t := range detail.Turns {
			label := "Farmer"
			if t.Role == "assistant" {
				label = "Assistant"
			}
			header := fmt.Sprintf("%s (%s)", label, t.Modality)
			if t.Intent != "" {
				header += " · " + t.Intent
			}
			fmt.Printf("%s\n%s\n\n", colorize(colorBold, header), t.Content)
		}
		return nil
	},
}

var sessionsExportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Export a session as json, md, or yaml",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/sessions/"+args[0]+"/export?format="+format)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
		}

		var writer *os.File
		if output != "" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer f.Close()
			writer = f
		} else {
			writer = os.Stdout
		}

		if _, err := io.Copy(writer, resp.Body); err != nil {
			return fmt.Errorf("writing export: %w", err)
		}

		if output != "" {
			printSuccess("Session exported to %s", output)
		}
		return nil
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a session and its turns",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/sessions/"+args[0])
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Deleted session %s", args[0])
		return nil
	},
}

func init() {
	sessionsListCmd.Flags().Int("limit", 20, "maximum number of sessions to list")
	sessionsExportCmd.Flags().String("format", "json", "export format: json, md, or yaml")
	sessionsExportCmd.Flags().String("output", "", "output file path (default: stdout)")

	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsExportCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
}

// shortID abbreviates a session ID for list display. Caller-minted IDs may be
// arbitrarily short, so only truncate when there is something to cut.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// --- languages ---

var languagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "List supported languages",
	RunE: func(cmd *cobra.Command, args []string) error {
		supported := language.Supported()
		codes := make([]string, 0, len(supported))
		for code := range supported {
			codes = append(codes, code)
		}
		sort.Strings(codes)

		for _, code := range codes {
			marker := ""
			if code == language.Fallback {
				marker = " (fallback)"
			}
			fmt.Printf("  %s  %s%s\n", colorize(colorBold, code), supported[code], marker)
		}
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
