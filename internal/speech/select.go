package speech

import (
	"context"
	"log/slog"
)

// Select picks the synthesis engine at process start: the preferred engine if
// its health check passes, otherwise the fallback. Returns nil when neither
// engine is usable; synthesis is then skipped and responses stay text-only.
func Select(ctx context.Context, preferred, fallback Synthesizer) Synthesizer {
	if preferred != nil {
		if err := preferred.Health(ctx); err == nil {
			slog.Info("speech synthesis engine selected", "engine", preferred.Name())
			return preferred
		} else {
			slog.Warn("preferred speech engine unavailable", "engine", preferred.Name(), "error", err)
		}
	}
	if fallback != nil {
		if err := fallback.Health(ctx); err == nil {
			slog.Info("speech synthesis engine selected", "engine", fallback.Name())
			return fallback
		} else {
			slog.Warn("fallback speech engine unavailable", "engine", fallback.Name(), "error", err)
		}
	}
	slog.Warn("no speech synthesis engine available; responses will be text-only")
	return nil
}
