// Command reasoncore-demo wires the reasoning core's collaborators
// together end to end: an LLM provider, a tool registry, the resource
// manager and circuit breaker the orchestrator shares with streaming,
// an event emitter, and an intent oracle feeding a single reasoning.Loop
// run. It exists to exercise the wiring a real host process would do,
// not as a production agent runtime.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"

	reasonctx "github.com/reasoncore/engine/context"
	"github.com/reasoncore/engine/events"
	"github.com/reasoncore/engine/observability"
	"github.com/reasoncore/engine/orchestrator"
	"github.com/reasoncore/engine/persistence"
	"github.com/reasoncore/engine/reasoning"
	"github.com/reasoncore/engine/resource"
	"github.com/reasoncore/engine/streaming"
	"github.com/reasoncore/engine/tools"

	"github.com/reasoncore/engine/breaker"
	"github.com/reasoncore/engine/config"
	"github.com/reasoncore/engine/llms"
)

// CLI defines the command-line interface.
type CLI struct {
	Run RunCmd `cmd:"" default:"withargs" help:"Run a single reasoning turn against a configured LLM."`

	LogLevel string `help:"Log level (debug, info, warn, error)." default:"info"`
}

// RunCmd drives one reasoning.Loop.Run call and prints the resulting
// session summary.
type RunCmd struct {
	Config string `short:"c" help:"Path to YAML config file. When omitted, the zero-config flags below build a single-provider config." type:"path"`

	Provider    string        `help:"LLM provider (anthropic, openai, gemini, ollama)." default:"ollama"`
	Model       string        `help:"Model name." default:"llama3"`
	APIKey      string        `name:"api-key" help:"API key (required for anthropic, openai, gemini)."`
	Host        string        `help:"Host/base URL for the provider." default:"http://localhost:11434"`
	Temperature float64       `help:"Sampling temperature." default:"0.7"`
	MaxTokens   int           `name:"max-tokens" help:"Max response tokens." default:"4096"`
	Timeout     time.Duration `help:"Per-request LLM timeout." default:"30s"`

	Input     string `arg:"" help:"The user turn to reason over."`
	SessionID string `name:"session-id" help:"Session ID to resume/persist under. A fresh ID is generated when omitted."`

	StorageDialect string `name:"storage-dialect" help:"Session persistence dialect: sqlite, postgres, mysql. Empty disables persistence." placeholder:"DIALECT"`
	StorageDSN     string `name:"storage-dsn" help:"Session persistence DSN (sqlite file path, postgres/mysql connection string)." default:"reasoncore-demo.db"`

	Observe bool `help:"Enable OpenTelemetry tracing + Prometheus metrics around the orchestrator."`
}

func (c *RunCmd) Run(cli *CLI) error {
	level := parseLogLevel(cli.LogLevel)
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Warn("shutdown signal received")
		cancel()
	}()

	cfg, err := c.loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	obsManager, err := observability.NewManager(ctx, &observability.Config{
		Tracing: observability.TracingConfig{Enabled: c.Observe},
		Metrics: observability.MetricsConfig{Enabled: c.Observe},
	})
	if err != nil {
		return fmt.Errorf("initializing observability: %w", err)
	}
	defer obsManager.Shutdown(context.Background())

	llmRegistry := llms.NewLLMRegistry()
	providerCfg := cfg.LLMs["default"]
	provider, err := llmRegistry.CreateLLMFromConfig("default", &providerCfg)
	if err != nil {
		return fmt.Errorf("creating LLM provider: %w", err)
	}
	defer provider.Close()

	toolRegistry, err := tools.NewToolRegistryWithConfig(&cfg.Tools)
	if err != nil {
		return fmt.Errorf("building tool registry: %w", err)
	}
	executor := tools.NewRegistryExecutor(toolRegistry)

	resourceManager := resource.NewManager(slog.Default())
	circuitBreaker := breaker.NewWithConfig(breaker.DefaultConfig())
	emitter := events.NewEmitter()
	logEmittedEvents(emitter)

	engineCfg := orchestrator.DefaultConfig()
	engineCfg.DefaultToolTimeout = c.Timeout
	orch := orchestrator.New(engineCfg, resourceManager, circuitBreaker, emitter,
		orchestrator.WithObservability(obsManager.Tracer(), obsManager.Metrics()))

	streamEngine := streaming.NewEngine(cfg.Engine.MaxConcurrentStreams, cfg.Engine.MaxBufferSize, streaming.DropOldest{}, circuitBreaker, emitter)

	analyzer := newLLMIntentAnalyzer(provider)

	loopCfg := reasoning.DefaultConfig()
	loopCfg.MaxIterations = cfg.Engine.MaxIterations
	loopCfg.MaxConcurrentStreams = cfg.Engine.MaxConcurrentStreams
	loopCfg.MaxBufferSize = cfg.Engine.MaxBufferSize
	loopCfg.DefaultToolTimeout = cfg.Engine.DefaultToolTimeout
	loopCfg.GlobalOrchestrationTimeout = cfg.Engine.GlobalOrchestrationTimeout
	loopCfg.MaxRetryAttempts = cfg.Engine.MaxRetryAttempts
	loopCfg.RetryBaseDelay = cfg.Engine.RetryBaseDelay
	loopCfg.RetryMaxDelay = cfg.Engine.RetryMaxDelay
	loopCfg.MaxIdenticalCalls = cfg.Engine.MaxIdenticalCalls
	loopCfg.MaxToolFailures = cfg.Engine.MaxToolFailures
	loopCfg.EnableRetry = cfg.Engine.EnableRetry

	loop := reasoning.NewLoop(loopCfg, provider, orch, executor, emitter, streamEngine, printingStreamHandler{}, analyzer)

	sessionID := c.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	history, err := reasonctx.NewConversationHistoryWithMax(sessionID, 200)
	if err != nil {
		return fmt.Errorf("building conversation history: %w", err)
	}

	var store persistence.StatePersistence
	var prev *reasoning.Session
	if c.StorageDialect != "" {
		sqlStore, err := persistence.Open(driverFor(c.StorageDialect), c.StorageDSN)
		if err != nil {
			return fmt.Errorf("opening session store: %w", err)
		}
		defer sqlStore.Close()
		store = sqlStore

		if data, err := store.Load(ctx, sessionID); err == nil {
			prev, err = reasoning.DecodeSession(data)
			if err != nil {
				slog.Warn("discarding unreadable persisted session", "session_id", sessionID, "error", err)
				prev = nil
			}
		} else if err != persistence.ErrNotFound {
			return fmt.Errorf("loading persisted session: %w", err)
		}
	}

	if _, err := history.AddUserText(c.Input, nil); err != nil {
		return fmt.Errorf("recording user turn: %w", err)
	}

	session, err := loop.Run(ctx, history, c.Input, prev)
	if err != nil {
		return fmt.Errorf("reasoning loop: %w", err)
	}

	if store != nil {
		data, err := reasoning.EncodeSession(session)
		if err != nil {
			return fmt.Errorf("encoding session for persistence: %w", err)
		}
		if err := store.Save(ctx, sessionID, data); err != nil {
			return fmt.Errorf("saving session: %w", err)
		}
	}

	fmt.Printf("session=%s success=%v steps=%d\n", session.ID, session.Success, len(session.History))
	if text, ok := history.LastAssistantText(); ok {
		fmt.Println(text)
	}
	return nil
}

// loadConfig builds a *config.Config either from c.Config's YAML file or,
// when that's empty, from the zero-config flags directly.
func (c *RunCmd) loadConfig() (*config.Config, error) {
	if c.Config != "" {
		return config.LoadConfig(c.Config)
	}

	loopDefaults := reasoning.DefaultConfig()
	cfg := &config.Config{
		LLMs: map[string]config.LLMProviderConfig{
			"default": {
				Type:        c.Provider,
				Model:       c.Model,
				APIKey:      c.APIKey,
				Host:        c.Host,
				Temperature: c.Temperature,
				MaxTokens:   c.MaxTokens,
				Timeout:     int(c.Timeout.Seconds()),
				MaxRetries:  3,
				RetryDelay:  1,
			},
		},
		Engine: config.EngineConfig{
			MaxIterations:              loopDefaults.MaxIterations,
			MaxConcurrentStreams:       loopDefaults.MaxConcurrentStreams,
			MaxBufferSize:              loopDefaults.MaxBufferSize,
			DefaultToolTimeout:         loopDefaults.DefaultToolTimeout,
			GlobalOrchestrationTimeout: loopDefaults.GlobalOrchestrationTimeout,
			MaxRetryAttempts:           loopDefaults.MaxRetryAttempts,
			RetryBaseDelay:             loopDefaults.RetryBaseDelay,
			RetryMaxDelay:              loopDefaults.RetryMaxDelay,
			MaxIdenticalCalls:          loopDefaults.MaxIdenticalCalls,
			MaxToolFailures:            loopDefaults.MaxToolFailures,
			EnableRetry:                loopDefaults.EnableRetry,
		},
	}
	return cfg, nil
}

// logEmittedEvents subscribes a slog sink to every event the core emits,
// standing in for whatever UI/telemetry consumer a real host would attach.
func logEmittedEvents(emitter *events.Emitter) {
	emitter.Subscribe(events.SubscriberFunc(func(e events.Event) {
		slog.Debug("event", "kind", e.Kind, "session_id", e.SessionID)
	}))
}

func driverFor(dialect string) string {
	if dialect == "sqlite" {
		return "sqlite3"
	}
	return dialect
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("reasoncore-demo"),
		kong.Description("Exercises the reasoning core's reasoning.Loop end to end."),
		kong.UsageOnError(),
	)
	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
