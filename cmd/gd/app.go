package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/workbay/garagedesk/internal/api"
	"github.com/workbay/garagedesk/internal/camera"
	"github.com/workbay/garagedesk/internal/config"
	"github.com/workbay/garagedesk/internal/db"
	"github.com/workbay/garagedesk/internal/logging"
	"github.com/workbay/garagedesk/internal/nav"
	"github.com/workbay/garagedesk/internal/notify"
	"github.com/workbay/garagedesk/internal/notify/discord"
	"github.com/workbay/garagedesk/internal/notify/slack"
	"github.com/workbay/garagedesk/internal/session"
)

// app bundles what every command needs once the config is loaded.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	sessions *session.Manager
	nav      *nav.History
	client   *api.Client
	closeDB  func() error
}

// loadApp reads the config, opens the session store and builds the API
// client. Navigation is echoed to the command's stdout.
func loadApp(cmd *cobra.Command, configPath string, start nav.Route) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := logging.Setup(cmd.ErrOrStderr(), cfg.Logging.Level, strings.EqualFold(cfg.Logging.Format, "json"))

	store, closeDB, err := openSessionStore(cfg.Session)
	if err != nil {
		return nil, err
	}
	sessions := session.NewManager(store)
	hist := nav.NewHistory(start, cmd.OutOrStdout())

	client, err := api.New(api.Options{
		BaseURL:   cfg.API.BaseURL,
		Timeout:   cfg.API.Timeout,
		Sessions:  sessions,
		Navigator: hist,
		Logger:    logger,
	})
	if err != nil {
		if closeDB != nil {
			closeDB()
		}
		return nil, err
	}
	return &app{
		cfg:      cfg,
		logger:   logger,
		sessions: sessions,
		nav:      hist,
		client:   client,
		closeDB:  closeDB,
	}, nil
}

// Close releases the session database.
func (a *app) Close() {
	if a.closeDB == nil {
		return
	}
	if err := a.closeDB(); err != nil {
		a.logger.Warn("close session store", "err", err)
	}
}

// requireLogin fails unless a session is stored.
func (a *app) requireLogin() (*session.Session, error) {
	ok, err := a.sessions.IsAuthenticated()
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("not logged in (run \"gd login\" first)")
	}
	return a.sessions.Get()
}

// openSessionStore returns the Store selected by cfg and a closer for its
// database, nil for the memory driver.
func openSessionStore(cfg config.SessionConfig) (session.Store, func() error, error) {
	if cfg.Driver == "memory" {
		return session.NewMemoryStore(), nil, nil
	}
	gormDB, err := db.Open(cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return nil, nil, err
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("db: underlying connection: %w", err)
	}
	return session.NewGormStore(gormDB), sqlDB.Close, nil
}

// buildNotifier returns a notifier posting to every configured chat
// channel, or notify.Nop when none is.
func buildNotifier(cfg config.NotifyConfig) (notify.Notifier, error) {
	var targets notify.Multi
	if cfg.Slack.Enabled() {
		n, err := slack.New(slack.Opts{BotToken: cfg.Slack.BotToken, ChannelID: cfg.Slack.ChannelID})
		if err != nil {
			return nil, err
		}
		targets = append(targets, n)
	}
	if cfg.Discord.Enabled() {
		n, err := discord.New(discord.Opts{BotToken: cfg.Discord.BotToken, ChannelID: cfg.Discord.ChannelID})
		if err != nil {
			return nil, err
		}
		targets = append(targets, n)
	}
	if len(targets) == 0 {
		return notify.Nop{}, nil
	}
	return targets, nil
}

// buildDevice picks the capture device: a still file when photo is set,
// the configured IP camera otherwise.
func buildDevice(cfg config.CameraConfig, photo string) camera.Device {
	switch {
	case photo != "":
		return camera.FileDevice{Path: photo}
	case cfg.RearURL != "" || cfg.FrontURL != "":
		return camera.NewSnapshotDevice(cfg.RearURL, cfg.FrontURL, cfg.Timeout)
	default:
		return camera.Unavailable{}
	}
}
