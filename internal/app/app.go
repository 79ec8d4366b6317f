// Package app wires the bot together and runs it until shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nhle/dojobot/internal/chat"
	"github.com/nhle/dojobot/internal/dispatch"
	"github.com/nhle/dojobot/internal/intent"
	"github.com/nhle/dojobot/internal/keylock"
	"github.com/nhle/dojobot/internal/logging"
	"github.com/nhle/dojobot/internal/model"
	"github.com/nhle/dojobot/internal/notify"
	"github.com/nhle/dojobot/internal/scheduling"
	"github.com/nhle/dojobot/internal/server"
	"github.com/nhle/dojobot/internal/session"
	"github.com/nhle/dojobot/internal/store"
	"github.com/nhle/dojobot/internal/telegram"
	"github.com/nhle/dojobot/internal/ui/console"
)

// shutdownTimeout bounds the HTTP server drain on exit.
const shutdownTimeout = 10 * time.Second

// consoleUser is the identity of the developer driving the console.
var consoleUser = chat.User{ID: 1, FirstName: "You", Username: "console"}

// consoleBot is the account the bot answers as in the console.
const consoleBot = "dojo_bot"

// Secrets resolves credentials that are not part of the config file.
type Secrets interface {
	TelegramToken(configured string) (string, error)
	NLUCredentials(path string) ([]byte, error)
}

// Options selects how the bot is run.
type Options struct {
	// Console replaces Telegram with the local terminal transport.
	Console bool

	// Detector overrides the Dialogflow client.
	Detector intent.Detector

	// TelegramBaseURL overrides the Bot API endpoint.
	TelegramBaseURL string
}

// App owns the long-lived components of the bot.
type App struct {
	cfg        *model.AppConfig
	log        logrus.FieldLogger
	store      *store.SQLStore
	sessions   session.Store
	sweeper    *notify.Sweeper
	dispatcher *dispatch.Dispatcher
	bot        *telegram.Bot
	console    *console.Transport
	router     http.Handler

	closeOnce sync.Once
}

// New opens the store and the session backend and builds every component
// for the selected transport.
func New(ctx context.Context, cfg *model.AppConfig, log logrus.FieldLogger, secrets Secrets, opts Options) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, log: logging.Component(log, "app")}

	a.store, err = store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	a.sessions, err = openSessions(ctx, cfg.Session)
	if err != nil {
		a.Close()
		return nil, err
	}

	detector := opts.Detector
	if detector == nil {
		key, err := secrets.NLUCredentials(cfg.NLU.CredentialsFile)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("loading NLU credentials: %w", err)
		}
		detector, err = intent.NewDialogflowClient(ctx, cfg.NLU, key)
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	var messenger chat.Messenger
	var dispatchOpts []dispatch.Option
	var client *telegram.Client
	if opts.Console {
		a.console = console.NewTransport(consoleUser)
		messenger = a.console
		dispatchOpts = append(dispatchOpts, dispatch.WithIdentity(dispatch.Identity{
			Name:     cfg.BotName,
			Username: consoleBot,
		}))
	} else {
		token, err := secrets.TelegramToken(cfg.Telegram.Token)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("loading telegram token: %w", err)
		}
		client = telegram.NewClient(token, opts.TelegramBaseURL)
		messenger = client
		dispatchOpts = append(dispatchOpts, dispatch.WithFiles(client))
	}

	locks := keylock.New()
	engine := scheduling.New(a.store,
		scheduling.WithLocation(loc),
		scheduling.WithLocks(locks),
		scheduling.WithLogger(log),
	)
	normalizer := intent.NewNormalizer(detector, loc, cfg.BotName)
	dispatchOpts = append(dispatchOpts, dispatch.WithLogger(log))
	a.dispatcher = dispatch.New(engine, normalizer, session.NewTracker(a.sessions), messenger, dispatchOpts...)
	a.sweeper = notify.New(a.store, messenger, locks, notify.WithLogger(log))

	if client != nil {
		a.bot = telegram.NewBot(client, a.dispatcher, time.Duration(cfg.Telegram.PollTimeoutSec)*time.Second, log)
		if cfg.Telegram.Mode == model.TelegramModeWebhook {
			a.router = server.NewRouter(a.bot, cfg.Telegram.WebhookSecret, log)
		}
	}
	if a.router == nil {
		a.router = server.NewRouter(nil, "", log)
	}

	return a, nil
}

func openSessions(ctx context.Context, cfg model.SessionConfig) (session.Store, error) {
	if cfg.Backend == model.SessionBackendRedis {
		s, err := session.NewRedisStore(ctx, cfg.RedisURL, time.Duration(cfg.TTLHours)*time.Hour)
		if err != nil {
			return nil, fmt.Errorf("opening session store: %w", err)
		}
		return s, nil
	}
	return session.NewMemoryStore(), nil
}

// Handler returns the HTTP routes served next to the bot.
func (a *App) Handler() http.Handler {
	return a.router
}

// Run starts the notification sweep and the transport, and blocks until
// ctx is cancelled or the transport fails.
func (a *App) Run(ctx context.Context) error {
	if a.bot != nil {
		self, err := a.bot.Identify(ctx)
		if err != nil {
			return err
		}
		a.dispatcher.SetIdentity(dispatch.Identity{
			ID:       self.ID,
			Name:     a.cfg.BotName,
			Username: self.Username,
		})
		logging.LogEvent(a.log, "bot_identified", logrus.Fields{"username": self.Username})
	}

	if err := a.sweeper.Start(ctx, a.cfg.SweepInterval()); err != nil {
		return err
	}
	defer a.sweeper.Stop()

	if a.console != nil {
		return console.Run(ctx, a.dispatcher, a.console, console.Bot{
			Name:     a.cfg.BotName,
			Username: consoleBot,
		})
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	var srv *server.Server
	if a.cfg.Server.Addr != "" {
		srv = server.New(a.cfg.Server.Addr, a.router)
		go func() {
			a.log.WithField("addr", a.cfg.Server.Addr).Info("http server listening")
			errCh <- srv.Start()
		}()
	}
	if a.cfg.Telegram.Mode == model.TelegramModePolling {
		go func() {
			errCh <- a.bot.Run(ctx)
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		if errors.Is(runErr, context.Canceled) {
			runErr = nil
		}
	}
	cancel()

	if srv != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stop()
		if err := srv.Stop(shutdownCtx); err != nil {
			logging.LogError(a.log, "http_shutdown_failed", err, nil)
		}
	}
	return runErr
}

// Close releases the store and the session backend.
func (a *App) Close() error {
	var errs []error
	a.closeOnce.Do(func() {
		if c, ok := a.sessions.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
		if a.store != nil {
			errs = append(errs, a.store.Close())
		}
	})
	return errors.Join(errs...)
}

// InitDB opens the configured store, which applies pending migrations, and
// reports the resulting schema version.
func InitDB(ctx context.Context, cfg *model.AppConfig) (int, error) {
	s, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return 0, fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()
	return s.SchemaVersion(ctx)
}
