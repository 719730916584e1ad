package app

import (
	"context"
	"os"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lefinal/arena-server/arena"
	"github.com/lefinal/arena-server/errors"
	"github.com/lefinal/arena-server/judge"
	"github.com/lefinal/arena-server/logging"
	"github.com/lefinal/arena-server/messages"
	"github.com/lefinal/arena-server/portal"
	"github.com/lefinal/arena-server/reception"
	"github.com/lefinal/arena-server/stores"
	"github.com/lefinal/arena-server/web_server"
	"github.com/lefinal/arena-server/ws"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"
)

// App is a complete arena server instance.
type App struct {
	// mall provides persistence.
	mall *stores.Mall
	// config is the main config used for the App.
	config Config
	// arena coordinates all running matches.
	arena *arena.Arena
	// reception relays websocket clients to the arena.
	reception *reception.Reception
	// wsHub is the hub for websocket connections.
	wsHub *ws.Hub
	// webServer is used for http requests and websocket connections.
	webServer *web_server.WebServer
	// portalBase is the optional MQTT connection for mirroring match events.
	portalBase portal.Base
	// matchMonitor mirrors match events via the portal. Only set when portalBase
	// is.
	matchMonitor *portal.MatchMonitor
}

func NewApp(config Config) *App {
	return &App{
		config: config,
	}
}

// Boot sets everything up based on the set config and boots.
func (app *App) Boot(ctx context.Context) error {
	// Validate config.
	err := ValidateConfig(app.config)
	if err != nil {
		return errors.FromErr("invalid config", errors.ErrFatal, err, nil)
	}
	// Setup logger.
	logger := setupLogging(app.config.Log)
	logging.ApplyToGlobalLoggers(logger)
	defer func() {
		_ = logger.Sync()
	}()
	// Boot.
	err = app.boot(ctx)
	if err != nil {
		err = errors.Wrap(err, "boot", nil)
		errors.Log(logging.AppLogger, err)
		return err
	}
	return nil
}

func (app *App) boot(ctx context.Context) error {
	logging.AppLogger.Warn("booting up")
	// Connect database.
	logging.AppLogger.Debug("connecting to database")
	db, err := connectDB(app.config.DBConn, defaultMaxDBConnections)
	if err != nil {
		return errors.Wrap(err, "connect database", nil)
	}
	app.mall = stores.NewMall(db)
	logging.AppLogger.Debug("database ready")
	logging.AppLogger.Debug("setting up...")
	// Create judge client.
	matchJudge := judge.NewHTTPJudge(app.config.JudgeAddr,
		time.Duration(app.config.JudgeTimeoutSec.Int)*time.Second)
	// Create arena. The notifier targets are added after creation because the
	// reception needs the arena as coordinator.
	notifier := &multiNotifier{}
	app.arena = arena.New(clockwork.NewRealClock(), notifier, app.mall, app.mall, matchJudge, arena.Config{
		GracePeriod:     time.Duration(app.config.GracePeriodSec.Int) * time.Second,
		RetentionPeriod: time.Duration(app.config.RetentionPeriodSec.Int) * time.Second,
	})
	// Create reception and websocket hub.
	app.reception = reception.NewReception(app.arena)
	notifier.addTarget(app.reception)
	notifier.addTarget(&matchStateRecorder{states: app.mall})
	app.wsHub = ws.NewHub(app.reception)
	// Create portal if an MQTT address is provided.
	if app.config.MQTTAddr.Valid {
		portalBase, err := portal.NewBase(logging.PortalLogger, portal.Config{MQTTAddr: app.config.MQTTAddr.String})
		if err != nil {
			return errors.Wrap(err, "create portal base", nil)
		}
		app.portalBase = portalBase
		app.matchMonitor = portal.NewMatchMonitor(portalBase.NewPortal("match-monitor"))
		notifier.addTarget(app.matchMonitor)
	}
	// Create web server.
	webServer, err := web_server.NewWebServer(web_server.Config{
		ServeAddr:    app.config.ServeAddr,
		WriteTimeout: web_server.DefaultWriteTimeout,
		ReadTimeout:  web_server.DefaultReadTimeout,
	})
	if err != nil {
		return errors.Wrap(err, "create web server", nil)
	}
	app.webServer = webServer
	app.webServer.PopulateRoutes(app.wsHub, ctx, &matchService{
		arena:   app.arena,
		mall:    app.mall,
		monitor: app.matchMonitor,
	})
	logging.AppLogger.Debug("setup completed. booting...")
	// Boot everything.
	wg, lifetime := errgroup.WithContext(ctx)
	wg.Go(func() error {
		app.wsHub.Run(lifetime)
		return nil
	})
	wg.Go(func() error {
		if err := app.arena.Run(lifetime); err != nil {
			return errors.Wrap(err, "run arena", nil)
		}
		return nil
	})
	wg.Go(func() error {
		if err := app.webServer.Run(lifetime); err != nil {
			return errors.Wrap(err, "run web server", nil)
		}
		return nil
	})
	if app.portalBase != nil {
		wg.Go(func() error {
			if err := app.portalBase.Open(lifetime); err != nil {
				return errors.Wrap(err, "open portal base", nil)
			}
			return nil
		})
	}
	logging.AppLogger.Warn("completed issuing boot commands")
	// Wait for exit.
	err = wg.Wait()
	logging.AppLogger.Warn("shutting down")
	if err != nil {
		return errors.Wrap(err, "run app components", nil)
	}
	return nil
}

// multiNotifier fans match broadcasts out to all added targets.
type multiNotifier struct {
	targets []arena.Notifier
}

// addTarget adds the given target. Not safe for concurrent use with Notify, so
// add all targets before the arena runs.
func (notifier *multiNotifier) addTarget(target arena.Notifier) {
	notifier.targets = append(notifier.targets, target)
}

func (notifier *multiNotifier) Notify(matchID messages.MatchID, container messages.MessageContainer) {
	for _, target := range notifier.targets {
		target.Notify(matchID, container)
	}
}

// matchService implements web_server.MatchService. Created matches are
// persisted and announced on the portal.
type matchService struct {
	arena   *arena.Arena
	mall    *stores.Mall
	monitor *portal.MatchMonitor
}

func (service *matchService) CreateMatch(ctx context.Context, users [2]messages.UserID,
	modeConfig arena.ModeConfig) (messages.MatchID, error) {
	// Assure both users exist so typos do not produce unjoinable matches.
	for _, userID := range users {
		_, err := service.mall.UserByID(ctx, userID)
		if err != nil {
			return "", errors.Wrap(err, "user by id", errors.Details{"user": userID})
		}
	}
	matchID, err := service.arena.CreateMatch(ctx, users, modeConfig)
	if err != nil {
		return "", errors.Wrap(err, "create match in arena", nil)
	}
	err = service.mall.SaveMatch(ctx, stores.Match{
		ID:       matchID,
		GameMode: modeConfig.GameMode,
		UserA:    users[0],
		UserB:    users[1],
		State:    messages.MatchStatePending,
		Created:  time.Now(),
	})
	if err != nil {
		return "", errors.Wrap(err, "save match", errors.Details{"match": matchID})
	}
	if service.monitor != nil {
		service.monitor.MatchCreated(ctx, matchID, modeConfig.GameMode, users[:])
	}
	return matchID, nil
}

func (service *matchService) Snapshot(ctx context.Context, matchID messages.MatchID) (messages.MessageFullState, error) {
	return service.arena.Snapshot(ctx, matchID)
}

func (service *matchService) MatchRecord(ctx context.Context, matchID messages.MatchID) (stores.Match, error) {
	return service.mall.MatchByID(ctx, matchID)
}

// matchStates is the persistence surface for matchStateRecorder. Satisfied by
// stores.Mall.
type matchStates interface {
	SetMatchState(ctx context.Context, matchID messages.MatchID, state messages.MatchState) error
}

// matchStateRecorder persists non-terminal match state transitions from the
// broadcast stream. Finished matches are covered by the result transaction,
// started and aborted ones are recorded here.
type matchStateRecorder struct {
	states matchStates
}

func (recorder *matchStateRecorder) Notify(matchID messages.MatchID, container messages.MessageContainer) {
	var state messages.MatchState
	switch container.MessageType {
	case messages.MessageTypeMatchStarted:
		state = messages.MatchStateActive
	case messages.MessageTypeMatchFinished:
		var finished messages.MessageMatchFinished
		err := messages.ParsePayload(container, &finished)
		if err != nil {
			errors.Log(logging.AppLogger, errors.Wrap(err, "parse finish payload for state recording", nil))
			return
		}
		if finished.State != messages.MatchStateAborted {
			// The result transaction marks the match as finished.
			return
		}
		state = messages.MatchStateAborted
	default:
		return
	}
	err := recorder.states.SetMatchState(context.Background(), matchID, state)
	if err != nil {
		errors.Log(logging.AppLogger, errors.Wrap(err, "set match state",
			errors.Details{"match": matchID, "state": state}))
	}
}

func setupLogging(config LogConfig) *zap.Logger {
	encConfig := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	cores := make([]zapcore.Core, 0)
	// Setup stdout logger with colorful level output.
	stdOutEncConfig := encConfig
	stdOutEncConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cores = append(cores, zapcore.NewCore(
		zapcore.NewConsoleEncoder(stdOutEncConfig),
		zapcore.Lock(os.Stdout),
		zap.LevelEnablerFunc(func(level zapcore.Level) bool {
			return level >= config.StdoutLogLevel
		})))
	// Setup error logger.
	cores = append(cores, zapcore.NewCore(
		zapcore.NewConsoleEncoder(encConfig),
		zapcore.Lock(os.Stderr),
		zap.LevelEnablerFunc(func(level zapcore.Level) bool {
			return level >= zap.ErrorLevel
		})))
	// Setup high priority logger.
	if config.HighPriorityOutput.Valid {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(encConfig),
			zapcore.AddSync(&lumberjack.Logger{
				Filename: config.HighPriorityOutput.String,
				MaxSize:  config.MaxSize,
				MaxAge:   config.KeepDays,
			}),
			zap.LevelEnablerFunc(func(level zapcore.Level) bool {
				return level >= zap.WarnLevel
			})))
	}
	// Setup debug logger.
	if config.DebugOutput.Valid {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(encConfig),
			zapcore.AddSync(&lumberjack.Logger{
				Filename: config.DebugOutput.String,
				MaxSize:  config.MaxSize,
				MaxAge:   config.KeepDays,
			}),
			zap.LevelEnablerFunc(func(level zapcore.Level) bool {
				return level >= zap.DebugLevel
			})))
	}
	// Combine.
	return zap.New(zapcore.NewTee(cores...))
}
