// Command matchdesk runs the live-match recording console core: the
// reconciliation engine, match clock, phase machine and the WebSocket
// channel to the match server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/matchdesk/console/internal/api"
	"github.com/matchdesk/console/internal/cache"
	"github.com/matchdesk/console/internal/clock"
	"github.com/matchdesk/console/internal/config"
	"github.com/matchdesk/console/internal/dispatcher"
	"github.com/matchdesk/console/internal/engine"
	"github.com/matchdesk/console/internal/flow"
	"github.com/matchdesk/console/internal/handlers"
	"github.com/matchdesk/console/internal/journal"
	"github.com/matchdesk/console/internal/logging"
	"github.com/matchdesk/console/internal/match"
	"github.com/matchdesk/console/internal/model"
	"github.com/matchdesk/console/internal/monitor"
	intotel "github.com/matchdesk/console/internal/otel"
	"github.com/matchdesk/console/internal/phase"
	"github.com/matchdesk/console/internal/queue"
	"github.com/matchdesk/console/internal/telemetry"
	"github.com/matchdesk/console/internal/transport"
)

// version info - BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.0.1"
	BuildDate      string = "unknown"
)

const appName = "matchdesk"

// file paths
var (
	// ConfigDir is where matchdesk.cfg.json is looked up.
	ConfigDir string = "."

	LogFilePath string
	LogFile     *os.File
)

// global variables
var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// OTelProvider handles OpenTelemetry
	OTelProvider *intotel.Provider

	SessionStartTime time.Time = time.Now()

	// Caches shared between handlers and the flow controller
	Roster        *cache.RosterCache   = cache.NewRosterCache()
	Notifications *queue.Queue[string] = queue.New[string]()

	// Services
	matchCtx        *match.Context
	journalStore    journal.Store
	apiClient       *api.Client
	channel         *transport.Channel
	eventDispatcher *dispatcher.Dispatcher
	recorder        *engine.Engine
	matchClock      *clock.Engine
	driftDetector   *clock.DriftDetector
	phaseMachine    *phase.Machine
	flowController  *flow.Controller
	handlerService  *handlers.Service
	monitorService  *monitor.Service
	telemetryMgr    *telemetry.Manager

	// hydrated flips after the first snapshot so refetches stop stomping
	// the locally running clock.
	hydrated bool
)

// init sets up config, the session log file and the logging pipeline
// before any service starts.
func init() {
	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(nil, "info", nil, nil)
	Logger = SlogManager.Logger()

	if err := config.Load(ConfigDir); err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		Logger.Info("Loaded config")
	}

	logsDir := viper.GetString("logsDir")
	if _, err := os.Stat(logsDir); os.IsNotExist(err) {
		os.Mkdir(logsDir, 0755)
	}

	var err error
	LogFilePath = logging.LogFilePath(logsDir, appName, SessionStartTime)
	LogFile, err = os.OpenFile(LogFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		Logger.Error("Failed to create/open log file!", "error", err, "path", LogFilePath)
	}

	// Initialize OTel provider if enabled (after log file is created)
	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		OTelProvider, err = intotel.New(intotel.Config{
			Enabled:        otelCfg.Enabled,
			ServiceName:    otelCfg.ServiceName,
			ServiceVersion: CurrentVersion,
			BatchTimeout:   otelCfg.BatchTimeout,
			LogWriter:      LogFile,
			Endpoint:       otelCfg.Endpoint,
			Insecure:       otelCfg.Insecure,
		})
		if err != nil {
			Logger.Error("Failed to initialize OTel provider", "error", err)
		} else if otelCfg.Endpoint != "" {
			Logger.Info("OTel provider initialized", "file", LogFilePath, "endpoint", otelCfg.Endpoint)
		} else {
			Logger.Info("OTel provider initialized", "file", LogFilePath)
		}
	}

	// Re-setup logging with file output, optional OTel and the dynamic
	// session attributes.
	var otelLogProvider *sdklog.LoggerProvider
	if OTelProvider != nil {
		otelLogProvider = OTelProvider.LoggerProvider()
	}
	SlogManager.Setup(LogFile, viper.GetString("logLevel"), otelLogProvider, sessionAttrs)
	Logger = SlogManager.Logger()
	Logger.Info("Logging to file", "path", LogFilePath, "version", CurrentVersion, "build", BuildDate)
}

// sessionAttrs stamps live session state onto every log record.
func sessionAttrs() []slog.Attr {
	var attrs []slog.Attr
	if matchCtx != nil {
		attrs = append(attrs,
			slog.String("matchId", matchCtx.MatchID()),
			slog.String("operator", matchCtx.Operator()),
		)
	}
	if channel != nil {
		attrs = append(attrs, slog.Bool("connected", channel.Connected()))
	}
	return attrs
}

// startServices builds and wires every console service. The channel is
// constructed before the engine: its callbacks only pack payloads into the
// dispatcher, and the handlers that consume them are registered last.
func startServices() error {
	var err error
	zlog := logging.NewZerolog(LogFile, viper.GetString("logLevel"))

	journalStore, err = journal.NewStore(config.GetJournalConfig(), zlog)
	if err != nil {
		return fmt.Errorf("creating journal store: %w", err)
	}
	if err = journalStore.Init(); err != nil {
		return fmt.Errorf("opening journal store: %w", err)
	}

	matchCtx = match.NewContext(viper.GetString("operatorId"))
	apiClient = api.New(viper.GetString("api.serverUrl"), viper.GetString("api.apiKey"))

	eventDispatcher, err = dispatcher.New(logging.NewDispatcherLogger(Logger))
	if err != nil {
		return fmt.Errorf("creating dispatcher: %w", err)
	}

	channel = transport.NewChannel(Logger, handlers.Callbacks(eventDispatcher, Logger))

	clk := clockwork.NewRealClock()
	recorder, err = engine.New(channel, journalStore, clk, Logger)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}

	matchClock = clock.NewEngine(clk)
	phaseMachine = phase.NewMachine(clk)
	driftDetector = clock.NewDriftDetector(clk, resyncClock)

	flowController = flow.NewController(clk, flow.MatchState{
		Expelled:    func(playerID string) bool { return recorder.Discipline().Expelled(playerID) },
		Period:      func() int { return phaseMachine.Current().Period() },
		PeriodClock: func() model.ClockStamp { return matchClock.Read().PeriodClock },
	}, apiClient)

	handlerService = handlers.NewService(handlers.Dependencies{
		Engine:         recorder,
		Match:          matchCtx,
		Roster:         Roster,
		Logger:         Logger,
		Notifications:  Notifications,
		RequestRefresh: func() { go refreshSnapshot() },
	})
	handlerService.RegisterHandlers(eventDispatcher)

	telemetryMgr = telemetry.NewManager(zlog, viper.GetString("influx.backupPath"))
	if viper.GetBool("influx.enabled") {
		if err := telemetryMgr.Connect(); err != nil {
			Logger.Warn("Telemetry unavailable, samples go to backup file", "error", err)
		}
	}

	monitorService = monitor.NewService(monitor.Dependencies{
		Engine:        recorder,
		Clock:         matchClock,
		Telemetry:     telemetryMgr,
		Notifications: Notifications,
		Logger:        Logger,
		MatchID:       viper.GetString("match.id"),
		StatusPath:    viper.GetString("statusPath"),
		Connected:     channel.Connected,
		Period:        func() int { return phaseMachine.Current().Period() },
	})
	if !monitorService.IsRunning() {
		if err := monitorService.Start(); err != nil {
			Logger.Error("Failed to start status monitor", "error", err)
		}
	}

	return nil
}

// connect dials the match server and announces the session. The channel
// reconnects on its own afterwards; the connection handler replays the
// journal on every connect.
func connect() {
	wsURL := viper.GetString("api.websocketUrl")
	secret := viper.GetString("api.apiKey")

	for {
		err := channel.Dial(wsURL, secret)
		if err == nil {
			break
		}
		Logger.Warn("Match server unreachable, retrying", "error", err)
		time.Sleep(5 * time.Second)
	}

	if err := channel.OpenSession(viper.GetString("match.id"), matchCtx.Operator()); err != nil {
		Logger.Error("Failed to open session", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := telemetryMgr.RecordSession(ctx, viper.GetString("match.id"), matchCtx.Operator(), "open"); err != nil {
		Logger.Debug("Session sample not recorded", "error", err)
	}
}

// refreshSnapshot fetches the authoritative snapshot and folds it into the
// local state. Local-only events and pending acks survive hydration.
func refreshSnapshot() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	snap, err := apiClient.FetchMatch(ctx, viper.GetString("match.id"))
	if err != nil {
		Logger.Warn("Snapshot fetch failed", "error", err)
		return
	}

	matchCtx.SetSnapshot(&snap)
	Roster.Load(snap.Rosters)
	recorder.Hydrate(snap)
	phaseMachine.Hydrate(snap)

	// Adopt the server clock once at startup; afterwards only a drift
	// resync replaces the locally running clock.
	if !hydrated {
		matchClock.SetState(snap.Clock)
		hydrated = true
		Logger.Info("Hydrated from server snapshot",
			"matchId", snap.MatchID, "status", snap.Status, "events", len(snap.Events))
	}
}

// resyncClock adopts the server clock after sustained drift. Runs on the
// ticker goroutine via the drift detector.
func resyncClock() {
	snap := matchCtx.GetSnapshot()
	if snap == nil {
		return
	}
	matchClock.SetState(snap.Clock)
	Notifications.Push("clock resynced to server")
	Logger.Info("Clock drift sustained, resynced to server",
		"accumulatedSeconds", snap.AccumulatedSeconds)
}

// tick runs on the refetch interval: snapshot refresh, drift comparison,
// telemetry samples and the operator notification feed.
func tick(now time.Time) {
	refreshSnapshot()

	snap := matchCtx.GetSnapshot()
	if snap != nil && snap.Status.Live() && snap.PeriodStartAnchor != nil {
		local := clock.Elapsed(matchClock.State(), now)
		server := now.Sub(*snap.PeriodStartAnchor).Seconds()
		resynced := driftDetector.Observe(local, server)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := telemetryMgr.RecordDrift(ctx, snap.MatchID, local, server, resynced); err != nil {
			Logger.Debug("Drift sample not recorded", "error", err)
		}
		cancel()
	}

	for _, msg := range Notifications.Drain() {
		Logger.Info("Operator feed", "notification", msg)
	}
}

func run() {
	if err := startServices(); err != nil {
		Logger.Error("Failed to start services", "error", err)
		panic(err)
	}

	connect()

	runCtx, stop := context.WithCancel(context.Background())
	go clock.RunTicker(runCtx, clockwork.NewRealClock(), config.GetRefetchInterval(), tick)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	Logger.Info("Shutting down", "signal", sig.String())

	stop()
	shutdown()
}

func shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := telemetryMgr.RecordSession(ctx, viper.GetString("match.id"), matchCtx.Operator(), "close"); err != nil {
		Logger.Debug("Session sample not recorded", "error", err)
	}

	monitorService.Stop()

	if err := channel.Close(); err != nil {
		Logger.Warn("Channel close error", "error", err)
	}
	if err := journalStore.Close(); err != nil {
		Logger.Warn("Journal close error", "error", err)
	}
	telemetryMgr.Close()

	if OTelProvider != nil {
		if err := OTelProvider.Flush(ctx); err != nil {
			Logger.Warn("Failed to flush OTel data", "error", err)
		}
		if err := OTelProvider.Shutdown(ctx); err != nil {
			Logger.Warn("Failed to shut down OTel provider", "error", err)
		}
	}
	if err := SlogManager.Flush(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to flush logs: %v\n", err)
	}
	if LogFile != nil {
		LogFile.Close()
	}
}

// resetMatch clears the match on the server and locally. The server
// requires the confirmation text to equal the match id; the local engine
// additionally refuses while acks are pending or journal entries are
// unsent, unless forced. The local guard runs first so a refused reset
// never wipes the server.
func resetMatch(confirmation string, force bool) error {
	if err := startServices(); err != nil {
		return err
	}
	defer journalStore.Close()

	if err := recorder.CanReset(force); err != nil {
		return fmt.Errorf("local reset refused: %w", err)
	}

	matchID := viper.GetString("match.id")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	snap, err := apiClient.ResetMatch(ctx, matchID, confirmation)
	if err != nil {
		return fmt.Errorf("server reset failed: %w", err)
	}
	if err := recorder.Reset(force, matchCtx.Operator()); err != nil {
		return fmt.Errorf("local reset refused: %w", err)
	}

	matchCtx.SetSnapshot(&snap)
	phaseMachine.Hydrate(snap)
	matchClock.SetState(snap.Clock)
	Logger.Info("Match reset", "matchId", matchID, "status", snap.Status, "forced", force)
	return nil
}

func main() {
	Logger.Info("Starting up...")

	args := os.Args[1:]
	if len(args) == 0 {
		run()
		return
	}

	switch strings.ToLower(args[0]) {
	case "run":
		run()
	case "healthcheck":
		if err := api.New(viper.GetString("api.serverUrl"), viper.GetString("api.apiKey")).
			Healthcheck(context.Background()); err != nil {
			fmt.Println("Match server is offline:", err)
			os.Exit(1)
		}
		fmt.Println("Match server is online.")
	case "reset":
		if len(args) < 2 {
			fmt.Println("Usage: matchdesk reset <confirmation> [--force]")
			os.Exit(1)
		}
		force := len(args) > 2 && args[2] == "--force"
		if err := resetMatch(args[1], force); err != nil {
			fmt.Println("Reset failed:", err)
			os.Exit(1)
		}
		fmt.Println("Match reset.")
	case "version":
		fmt.Println(CurrentVersion, BuildDate)
	default:
		fmt.Println("Unknown command:", args[0])
		os.Exit(1)
	}
}
