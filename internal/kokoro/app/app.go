// Package app wires the Kokoro daemon together: persona cards, per-persona
// stores and soul sessions, the Matrix front end, the command surface, and
// the optional health server.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/bdobrica/Kokoro/common/trace"
	"github.com/bdobrica/Kokoro/internal/kokoro/chat"
	"github.com/bdobrica/Kokoro/internal/kokoro/commands"
	"github.com/bdobrica/Kokoro/internal/kokoro/emotion"
	"github.com/bdobrica/Kokoro/internal/kokoro/matrix"
	"github.com/bdobrica/Kokoro/internal/kokoro/oracle"
	"github.com/bdobrica/Kokoro/internal/kokoro/persona"
	"github.com/bdobrica/Kokoro/internal/kokoro/soul"
	"github.com/bdobrica/Kokoro/internal/kokoro/store"
)

const (
	// turnQueueSize bounds each persona's pending-turn queue. A full queue
	// drops new messages rather than blocking the Matrix sync loop.
	turnQueueSize = 16

	// typingTimeout is how long the typing indicator stays up while a
	// persona is thinking.
	typingTimeout = 30 * time.Second

	// sweepInterval is how often stale conversation threads are expired.
	sweepInterval = time.Minute

	// goldenPromptLimit and vocabPromptLimit cap how many golden memories
	// and minted words are woven into each reply prompt.
	goldenPromptLimit = 5
	vocabPromptLimit  = 8
)

// Config holds application configuration.
type Config struct {
	// CardDir is the directory holding persona card YAML files. Every card
	// in the directory is loaded at startup; an invalid card is fatal.
	CardDir string

	// DataDir is the directory for SQLite files: one database per persona
	// plus matrix.db for the bot-level sync token.
	DataDir string

	// Matrix holds the bot account credentials. Rooms is filled from the
	// persona cards; any value set here is overwritten.
	Matrix matrix.Config

	// HTTPAddr is the TCP address for the optional health/status HTTP
	// server (e.g. ":8080"). When empty the server is disabled.
	HTTPAddr string

	// OracleAPIKey authenticates against the decision oracle. When empty
	// the soul engines run on the noop oracle: every checkpoint takes the
	// fallback fate and no network calls are made.
	OracleAPIKey string

	// OracleBaseURL overrides the oracle API endpoint (e.g. for Ollama or
	// Azure). Empty defaults to the public OpenAI endpoint.
	OracleBaseURL string

	// OracleModel is the chat model used for reflection judgements.
	// Defaults to "gpt-4o-mini" when empty.
	OracleModel string

	// OracleRateLimit is the maximum number of oracle judgements per
	// persona per minute. Defaults to oracle.DefaultRateLimit when zero.
	OracleRateLimit int

	// ChatAPIKey authenticates the reply responder. Falls back to
	// OracleAPIKey when empty; when both are empty every persona answers
	// with the canned fallback line.
	ChatAPIKey string

	// ChatBaseURL overrides the responder API endpoint.
	ChatBaseURL string

	// ChatModel is the default reply model; a card's chat.model overrides
	// it per persona. Defaults to "gpt-4o-mini" when empty.
	ChatModel string

	// ChatCooldown is the inactivity window after which a room's
	// conversation thread is forgotten. Defaults to 15 minutes when zero.
	ChatCooldown time.Duration

	// ChatMaxMessages caps the per-room history buffer. Defaults to 30.
	ChatMaxMessages int

	// ChatMaxTokens is the estimated token budget for the per-room history
	// buffer. Defaults to 6000.
	ChatMaxTokens int
}

// personaRuntime bundles everything one loaded persona needs to take a turn.
type personaRuntime struct {
	card      *persona.Card
	store     *store.Store
	session   *soul.Session
	engine    *soul.Engine // nil when the card has soul disabled
	responder chat.Responder
	tracker   *chat.Tracker
	turns     chan turnRequest
}

// turnRequest is one queued conversational turn.
type turnRequest struct {
	traceID string
	roomID  string
	text    string
}

// App is the assembled Kokoro daemon.
type App struct {
	config   *Config
	personas map[string]*personaRuntime
	rooms    map[string]string // room ID → persona ID
	wildcard string            // persona ID claiming "*", empty when none

	analyzer     *emotion.Analyzer
	matrix       *matrix.Client
	router       *commands.Router
	handlers     *commands.Handlers
	healthServer *HealthServer
	syncDB       *sql.DB
}

// New assembles a Kokoro application from the given configuration. Card
// errors are fatal here; store errors at runtime are not (the engine
// degrades instead).
func New(config *Config) (*App, error) {
	// --- 1. Persona cards ----------------------------------------------------
	slog.Info("loading persona cards", "dir", config.CardDir)
	cards, err := persona.LoadDir(config.CardDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load persona cards: %w", err)
	}
	if len(cards) == 0 {
		return nil, fmt.Errorf("no persona cards found in %s", config.CardDir)
	}

	a := &App{
		config:   config,
		personas: make(map[string]*personaRuntime, len(cards)),
		rooms:    make(map[string]string),
		analyzer: emotion.NewAnalyzer(),
	}

	// --- 2. Decision oracle (shared across personas) --------------------------
	var judge soul.Oracle
	if config.OracleAPIKey != "" {
		provider := oracle.New(oracle.Config{
			APIKey:  config.OracleAPIKey,
			BaseURL: config.OracleBaseURL,
			Model:   config.OracleModel,
		})
		limiter := oracle.NewRateLimiter(config.OracleRateLimit, time.Minute)
		judge = oracle.NewJudge(provider, limiter, slog.Default())
		slog.Info("decision oracle ready", "model", orDefault(config.OracleModel, "gpt-4o-mini"))
	} else {
		judge = soul.NewNoopOracle(slog.Default())
		slog.Info("no oracle API key; checkpoints will take the fallback fate")
	}

	// --- 3. Per-persona runtime: store, session, engine, responder ------------
	trackerCfg := chat.DefaultTrackerConfig()
	if config.ChatCooldown > 0 {
		trackerCfg.Cooldown = config.ChatCooldown
	}
	if config.ChatMaxMessages > 0 {
		trackerCfg.MaxMessages = config.ChatMaxMessages
	}
	if config.ChatMaxTokens > 0 {
		trackerCfg.MaxTokens = config.ChatMaxTokens
	}

	chatKey := config.ChatAPIKey
	if chatKey == "" {
		chatKey = config.OracleAPIKey
	}
	if chatKey == "" {
		slog.Info("no chat API key; personas will answer with the fallback line")
	}

	for _, card := range cards {
		id := card.Persona.ID

		st, err := store.New(filepath.Join(config.DataDir, id+".db"))
		if err != nil {
			a.closeStores()
			return nil, fmt.Errorf("failed to open store for persona %s: %w", id, err)
		}

		stateCfg := emotion.DefaultStateConfig()
		if len(card.Emotions.Baseline) > 0 {
			stateCfg.Baseline = emotion.Snapshot(card.Emotions.Baseline)
		}

		p := &personaRuntime{
			card:    card,
			store:   st,
			session: soul.NewSession(id, emotion.NewState(stateCfg)),
			tracker: chat.NewTracker(trackerCfg),
			turns:   make(chan turnRequest, turnQueueSize),
		}

		if card.Soul.Enabled {
			p.engine = soul.NewEngine(judge, st.Weights(), st.Golden(), st.Realizations(), st.Audit(),
				slog.With("persona", id))
		}

		if chatKey != "" {
			p.responder = chat.NewLLM(chat.LLMConfig{
				APIKey:      chatKey,
				BaseURL:     config.ChatBaseURL,
				Model:       orDefault(card.Chat.Model, config.ChatModel),
				Temperature: card.Chat.Temperature,
			})
		} else {
			p.responder = chat.NewStatic("")
		}

		a.personas[id] = p
		a.claimRooms(card)
		slog.Info("persona ready", "persona", id, "soul", card.Soul.Enabled, "rooms", len(card.Matrix.Rooms))
	}

	// --- 4. Matrix client ------------------------------------------------------
	// The sync token lives in its own bot-level database; the persona
	// databases hold only what belongs to each persona.
	syncDB, err := openSyncDB(filepath.Join(config.DataDir, "matrix.db"))
	if err != nil {
		a.closeStores()
		return nil, err
	}
	a.syncDB = syncDB

	matrixCfg := config.Matrix
	matrixCfg.Rooms = a.roomUnion()
	matrixCfg.DB = syncDB
	slog.Info("connecting to Matrix", "homeserver", matrixCfg.Homeserver)
	matrixClient, err := matrix.New(&matrixCfg)
	if err != nil {
		a.closeStores()
		return nil, fmt.Errorf("failed to initialize Matrix client: %w", err)
	}
	a.matrix = matrixClient

	// --- 5. Command surface ----------------------------------------------------
	router := commands.NewRouter(commands.Prefix)
	handlers := commands.NewHandlers(a)
	router.Register("help", handlers.HandleHelp)
	router.Register("version", handlers.HandleVersion)
	router.Register("status", handlers.HandleStatus)
	router.Register("golden", handlers.HandleGolden)
	router.Register("realizations", handlers.HandleRealizations)
	router.Register("weights", handlers.HandleWeights)
	router.Register("audit", handlers.HandleAudit)
	a.router = router
	a.handlers = handlers
	slog.Info("command surface ready", "prefix", commands.Prefix)

	// --- 6. Health server ------------------------------------------------------
	if config.HTTPAddr != "" {
		a.healthServer = NewHealthServer(config.HTTPAddr, a)
		slog.Info("health server configured", "addr", config.HTTPAddr)
	}

	return a, nil
}

// Run starts the daemon and blocks until an interrupt or TERM signal.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if a.healthServer != nil {
		if err := a.healthServer.Start(ctx); err != nil {
			slog.Warn("health server failed to start; continuing without it", "err", err)
		}
	}

	// One worker per persona keeps that persona's turns in arrival order
	// while independent personas proceed in parallel.
	for _, p := range a.personas {
		go a.runTurnWorker(ctx, p)
	}
	go a.runTrackerSweep(ctx)

	slog.Info("starting Matrix sync")
	if err := a.matrix.Start(ctx, a.handleMessage); err != nil {
		return fmt.Errorf("failed to start Matrix client: %w", err)
	}

	for roomID, personaID := range a.rooms {
		name := a.personas[personaID].card.Persona.Name
		a.matrix.SendNotice(roomID, fmt.Sprintf("✨ %s is listening. Type %s help for commands.", name, commands.Prefix))
	}

	slog.Info("Kokoro is running; press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down")
	return nil
}

// Stop stops the daemon and releases its resources.
func (a *App) Stop() {
	slog.Info("stopping Matrix client")
	a.matrix.Stop()

	if a.healthServer != nil {
		slog.Info("stopping health server")
		a.healthServer.Stop()
	}

	slog.Info("closing persona stores")
	a.closeStores()
}

// runTurnWorker drains one persona's turn queue.
func (a *App) runTurnWorker(ctx context.Context, p *personaRuntime) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-p.turns:
			a.personaTurn(trace.WithTraceID(ctx, t.traceID), p, t.roomID, t.text)
		}
	}
}

// runTrackerSweep periodically drops conversation threads past their
// cooldown, so a returning user starts a fresh thread instead of continuing
// a stale one.
func (a *App) runTrackerSweep(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for id, p := range a.personas {
				if n := p.tracker.ExpireStale(time.Now()); n > 0 {
					slog.Debug("expired conversation threads", "persona", id, "count", n)
				}
			}
		}
	}
}

// claimRooms records which persona answers in each of the card's rooms.
// The first persona to claim a room (cards load in filename order) keeps it.
func (a *App) claimRooms(card *persona.Card) {
	id := card.Persona.ID
	for _, room := range card.Matrix.Rooms {
		if room == "*" {
			if a.wildcard != "" && a.wildcard != id {
				slog.Warn("wildcard room already claimed; keeping the first persona",
					"persona", a.wildcard, "ignored", id)
				continue
			}
			a.wildcard = id
			continue
		}
		if prev, taken := a.rooms[room]; taken {
			slog.Warn("room already claimed; keeping the first persona",
				"room", room, "persona", prev, "ignored", id)
			continue
		}
		a.rooms[room] = id
	}
}

// roomUnion returns the sorted union of all claimed rooms for the Matrix
// allowlist, with the wildcard kept when any persona claims it.
func (a *App) roomUnion() []string {
	rooms := make([]string, 0, len(a.rooms)+1)
	for room := range a.rooms {
		rooms = append(rooms, room)
	}
	sort.Strings(rooms)
	if a.wildcard != "" {
		rooms = append(rooms, "*")
	}
	return rooms
}

// closeStores closes every opened persona store and the sync database. Used
// on both the failed-startup path and Stop.
func (a *App) closeStores() {
	for id, p := range a.personas {
		if err := p.store.Close(); err != nil {
			slog.Warn("failed to close persona store", "persona", id, "err", err)
		}
	}
	if a.syncDB != nil {
		if err := a.syncDB.Close(); err != nil {
			slog.Warn("failed to close sync database", "err", err)
		}
	}
}

// openSyncDB opens the bot-level SQLite file backing the Matrix sync token
// store. The sync position belongs to the bot account, not to any persona,
// so it never lives in a persona database.
func openSyncDB(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sync database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	for _, pragma := range []string{"PRAGMA journal_mode = WAL", "PRAGMA busy_timeout = 5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma on sync database: %w", err)
		}
	}
	return db, nil
}

// --- commands.Runtime --------------------------------------------------------

var _ commands.Runtime = (*App)(nil)

// PersonaIDs returns the loaded persona IDs, sorted.
func (a *App) PersonaIDs() []string {
	ids := make([]string, 0, len(a.personas))
	for id := range a.personas {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Status reports the live session state for one persona.
func (a *App) Status(personaID string) (commands.PersonaStatus, bool) {
	p, ok := a.personas[personaID]
	if !ok {
		return commands.PersonaStatus{}, false
	}
	return commands.PersonaStatus{
		ID:       personaID,
		Name:     p.card.Persona.Name,
		Mood:     p.session.Emotions.Mood(),
		Emotions: p.session.Emotions.Vector(),
		STMCount: p.session.STM.Len(),
	}, true
}

// Store returns the durable store for one persona.
func (a *App) Store(personaID string) (*store.Store, bool) {
	p, ok := a.personas[personaID]
	if !ok {
		return nil, false
	}
	return p.store, true
}

// --- health server source ----------------------------------------------------

// PersonaCount reports how many personas are loaded.
func (a *App) PersonaCount() int {
	return len(a.personas)
}

// MemoryCounts sums golden memories, realizations, and audit rows across all
// persona stores. A count failure is logged and contributes zero, so /status
// stays up while a store is briefly locked.
func (a *App) MemoryCounts(ctx context.Context) MemoryCounts {
	var mc MemoryCounts
	for id, p := range a.personas {
		if n, err := p.store.CountGoldenMemories(ctx); err == nil {
			mc.Golden += n
		} else {
			slog.Warn("failed to count golden memories", "persona", id, "err", err)
		}
		if n, err := p.store.CountRealizations(ctx); err == nil {
			mc.Realizations += n
		} else {
			slog.Warn("failed to count realizations", "persona", id, "err", err)
		}
		if n, err := p.store.CountReflections(ctx); err == nil {
			mc.Reflections += n
		} else {
			slog.Warn("failed to count reflections", "persona", id, "err", err)
		}
	}
	return mc
}

// orDefault returns s if non-empty, otherwise fallback.
func orDefault(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
