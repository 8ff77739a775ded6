// Kokoro is the persona memory daemon.
//
// All configuration is loaded from environment variables. The daemon loads
// persona cards, opens one SQLite database per persona, connects to a Matrix
// homeserver, and starts taking conversational turns.
//
// Required environment variables:
//
//	MATRIX_HOMESERVER     - Matrix homeserver URL (e.g. "https://matrix.org")
//	MATRIX_USER_ID        - bot's Matrix ID (e.g. "@kokoro:matrix.org")
//	MATRIX_ACCESS_TOKEN   - bot's Matrix access token
//
// Optional environment variables:
//
//	KOKORO_CARD_DIR          - persona card directory (default "./personas")
//	KOKORO_DATA_DIR          - SQLite database directory (default "./data")
//	KOKORO_HTTP_ADDR         - health/status listen address (default: disabled)
//	KOKORO_ORACLE_API_KEY    - decision oracle API key (default: noop oracle)
//	KOKORO_ORACLE_BASE_URL   - oracle API base URL override (e.g. Ollama)
//	KOKORO_ORACLE_MODEL      - oracle model (default "gpt-4o-mini")
//	KOKORO_ORACLE_RATE_LIMIT - oracle judgements per persona per minute
//	KOKORO_CHAT_API_KEY      - responder API key (default: the oracle key)
//	KOKORO_CHAT_BASE_URL     - responder API base URL override
//	KOKORO_CHAT_MODEL        - default reply model (cards may override)
//	KOKORO_CHAT_COOLDOWN     - conversation thread cooldown (default "15m")
//	KOKORO_CHAT_MAX_MESSAGES - per-room history message cap (default 30)
//	KOKORO_CHAT_MAX_TOKENS   - per-room history token budget (default 6000)
//	KOKORO_LOG_LEVEL         - "debug", "info", "warn", "error" (default "info")
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/bdobrica/Kokoro/common/environment"
	"github.com/bdobrica/Kokoro/common/version"
	"github.com/bdobrica/Kokoro/internal/kokoro/app"
	"github.com/bdobrica/Kokoro/internal/kokoro/matrix"
)

func main() {
	setupLogging(environment.StringOr("KOKORO_LOG_LEVEL", "info"))

	fmt.Printf("Kokoro %s\n\n", version.Info())

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	kokoro, err := app.New(cfg)
	if err != nil {
		slog.Error("failed to initialize Kokoro", "err", err)
		os.Exit(1)
	}
	defer kokoro.Stop()

	if err := kokoro.Run(); err != nil {
		slog.Error("Kokoro exited with error", "err", err)
		os.Exit(1)
	}
}

// loadConfig assembles the app configuration from environment variables.
func loadConfig() (*app.Config, error) {
	homeserver, err := environment.RequiredString("MATRIX_HOMESERVER")
	if err != nil {
		return nil, err
	}
	userID, err := environment.RequiredString("MATRIX_USER_ID")
	if err != nil {
		return nil, err
	}
	accessToken, err := environment.RequiredString("MATRIX_ACCESS_TOKEN")
	if err != nil {
		return nil, err
	}

	return &app.Config{
		CardDir:  environment.StringOr("KOKORO_CARD_DIR", "./personas"),
		DataDir:  environment.StringOr("KOKORO_DATA_DIR", "./data"),
		HTTPAddr: environment.StringOr("KOKORO_HTTP_ADDR", ""),
		Matrix: matrix.Config{
			Homeserver:  homeserver,
			UserID:      userID,
			AccessToken: accessToken,
		},
		OracleAPIKey:    environment.StringOr("KOKORO_ORACLE_API_KEY", ""),
		OracleBaseURL:   environment.StringOr("KOKORO_ORACLE_BASE_URL", ""),
		OracleModel:     environment.StringOr("KOKORO_ORACLE_MODEL", ""),
		OracleRateLimit: environment.IntOr("KOKORO_ORACLE_RATE_LIMIT", 0),
		ChatAPIKey:      environment.StringOr("KOKORO_CHAT_API_KEY", ""),
		ChatBaseURL:     environment.StringOr("KOKORO_CHAT_BASE_URL", ""),
		ChatModel:       environment.StringOr("KOKORO_CHAT_MODEL", ""),
		ChatCooldown:    environment.DurationOr("KOKORO_CHAT_COOLDOWN", 0),
		ChatMaxMessages: environment.IntOr("KOKORO_CHAT_MAX_MESSAGES", 0),
		ChatMaxTokens:   environment.IntOr("KOKORO_CHAT_MAX_TOKENS", 0),
	}, nil
}

// setupLogging configures the process-wide slog default.
func setupLogging(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}
