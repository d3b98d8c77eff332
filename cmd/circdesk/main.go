// Package main runs the circdesk service: the browser automation core that
// drives the remote library system's issuance workspace, plus the desk-facing
// HTTP front end, local persistence and webhook notifications.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/librarydesk/circdesk/pkg/config"
	"github.com/librarydesk/circdesk/pkg/logging"
	"github.com/librarydesk/circdesk/pkg/notify"
	"github.com/librarydesk/circdesk/pkg/rpa"
	"github.com/librarydesk/circdesk/pkg/server"
	"github.com/librarydesk/circdesk/pkg/store"
)

const (
	version           = "0.1.0"
	heartbeatInterval = 30 * time.Minute
)

func main() {
	var (
		envFile     = flag.String("env", "", "path to an env file (defaults to ./.env)")
		addr        = flag.String("addr", "", "listen address, overrides CIRCDESK_LISTEN_ADDR")
		headless    = flag.Bool("headless", false, "run the browser headless (overrides CIRCDESK_HEADLESS)")
		prod        = flag.Bool("prod", false, "production logging (JSON, info level)")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("circdesk v%s\n", version)
		return
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}
	if *addr != "" {
		cfg.ListenAddr = *addr
	}
	if *headless {
		cfg.Headless = true
	}

	logger := logging.New(cfg.LogFile, *prod)
	defer func() { _ = logger.Sync() }()
	logger.Info("starting circdesk",
		zap.String("version", version),
		zap.String("addr", cfg.ListenAddr),
		zap.String("base_url", cfg.BaseURL),
		zap.Bool("headless", cfg.Headless))

	selectors, err := rpa.LoadSelectors(cfg.SelectorFile)
	if err != nil {
		logger.Fatal("could not load selector overrides", zap.Error(err))
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Fatal("could not open database", zap.Error(err))
	}

	driver := rpa.New(rpa.Config{
		BaseURL:       cfg.BaseURL,
		LoginPath:     cfg.LoginPath,
		WorkspacePath: cfg.WorkspacePath,
		UserEmail:     cfg.UserEmail,
		Password:      cfg.Password,
		ProfileDir:    cfg.ProfileDir,
	}, selectors, logger.Named("rpa"))

	// The browser comes up eagerly so the first scan does not pay the
	// launch cost; a failure here is not fatal, the first operation retries.
	if err := driver.Start(cfg.Headless); err != nil {
		logger.Warn("browser did not start, will retry on first use", zap.Error(err))
	}

	notifier := notify.New(cfg.StartupWebhookURL, cfg.EventsWebhookURL, logger.Named("notify"))
	notifier.Startup(fmt.Sprintf("circdesk v%s up, serving %s", version, cfg.ListenAddr))
	notifier.StartHeartbeat(heartbeatInterval, func() string {
		st := driver.Health()
		if st.OK && st.LoggedIn {
			return "heartbeat: session healthy and logged in"
		}
		return fmt.Sprintf("heartbeat: attention needed (%s)", st.Message)
	})

	srv := server.New(cfg, driver, st, notifier, logger.Named("http"))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Listen() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.Error("server stopped", zap.Error(err))
	}

	notifier.Shutdown("circdesk shutting down")
	notifier.Stop()
	if err := srv.Shutdown(); err != nil {
		logger.Warn("server shutdown", zap.Error(err))
	}
	if err := driver.Stop(); err != nil {
		logger.Warn("browser shutdown", zap.Error(err))
	}
	if err := st.Close(); err != nil {
		logger.Warn("database close", zap.Error(err))
	}
	logger.Info("circdesk stopped")
}
