// Command dojobot runs the Dojo Bot meeting and task assistant.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/nhle/dojobot/internal/app"
	"github.com/nhle/dojobot/internal/credential"
	"github.com/nhle/dojobot/internal/logging"
	"github.com/nhle/dojobot/internal/model"
	"github.com/nhle/dojobot/internal/ui/setup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "dojobot:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.StringP("config", "c", model.DefaultConfigPath(), "path to the YAML config file")
	initDB := flag.BoolP("init-db", "d", false, "apply database migrations and exit")
	runSetup := flag.Bool("setup", false, "store the bot credentials in the system keyring")
	useConsole := flag.Bool("console", false, "talk to the bot in this terminal instead of Telegram")
	flag.Parse()

	cfg, err := model.LoadConfig(*configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *initDB {
		version, err := app.InitDB(ctx, cfg)
		if err != nil {
			return err
		}
		fmt.Printf("database ready at schema version %d\n", version)
		return nil
	}

	secrets, err := credential.Open()
	if err != nil {
		return err
	}
	if *runSetup {
		return setup.Run(secrets, cfg, *configPath)
	}

	log, err := logging.Setup(cfg.Log)
	if err != nil {
		return err
	}
	defer logging.Flush()
	if *useConsole {
		// The terminal belongs to the console UI.
		log.SetOutput(logFile())
	}

	a, err := app.New(ctx, cfg, log, secrets, app.Options{Console: *useConsole})
	if err != nil {
		logging.LogError(log, "startup_failed", err, nil)
		return err
	}
	defer a.Close()

	log.WithFields(logrus.Fields{
		"mode":    cfg.Telegram.Mode,
		"console": *useConsole,
		"store":   cfg.Store.Driver,
	}).Info("dojobot starting")

	if err := a.Run(ctx); err != nil {
		logging.LogError(log, "run_failed", err, nil)
		return err
	}
	log.Info("dojobot stopped")
	return nil
}

// logFile opens the console session log next to the database, falling back
// to discarding output.
func logFile() io.Writer {
	path := model.DefaultDataPath() + ".log"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return io.Discard
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return io.Discard
	}
	return f
}
