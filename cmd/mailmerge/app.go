package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/byanjiong/mailmerge/internal/config"
	"github.com/byanjiong/mailmerge/internal/credentials"
	"github.com/byanjiong/mailmerge/internal/database"
	"github.com/byanjiong/mailmerge/internal/dispatch"
	"github.com/byanjiong/mailmerge/internal/email"
	"github.com/byanjiong/mailmerge/internal/history"
	"github.com/byanjiong/mailmerge/internal/logger"
)

// app holds what every command needs: configuration, the process logger
// and the resources to release on exit.
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	closers []io.Closer
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	a := &app{cfg: cfg}

	if cfg.Log.File == "" {
		a.log = logger.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
		return a, nil
	}

	f, err := logger.OpenFile(cfg.Log.File)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, f)
	a.log = logger.NewTee(cfg.Log.Level, cfg.Log.Format, os.Stderr, f)
	return a, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i].Close()
	}
}

func (a *app) credentials() *credentials.Provider {
	return credentials.NewProvider(a.cfg.Gmail.CredentialsFile, a.cfg.Gmail.TokenFile, a.log)
}

// connector picks the Gmail auth mode: service account, then configured
// refresh token, then the token saved by `mailmerge auth`.
func (a *app) connector() dispatch.Connector {
	g := a.cfg.Gmail
	return func(ctx context.Context) (email.Sender, error) {
		switch {
		case g.ServiceAccountJSON != "":
			return email.NewGmailSender(ctx, email.GmailConfig{
				CredentialsJSON: g.ServiceAccountJSON,
				SenderAddress:   g.SenderAddress,
			})
		case g.RefreshToken != "":
			return email.NewGmailSenderWithToken(ctx, g.ClientID, g.ClientSecret, g.RefreshToken)
		default:
			client, err := a.credentials().Client(ctx)
			if err != nil {
				return nil, err
			}
			return email.NewGmailSenderWithClient(ctx, client)
		}
	}
}

// historyStore opens the configured history backend.
func (a *app) historyStore(ctx context.Context) (history.Store, error) {
	switch a.cfg.History.Backend {
	case "postgres":
		db, err := database.NewPostgres(ctx, a.cfg.Database)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db)
		return history.NewPostgresStore(db), nil
	case "redis":
		rdb, err := database.NewRedis(ctx, a.cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rdb)
		return history.NewRedisStore(rdb.Client, a.cfg.Redis.KeyPrefix), nil
	default:
		return history.NewFileStore(a.cfg.History.File), nil
	}
}

// runConfig maps the loaded configuration onto one dispatch run.
func (a *app) runConfig() dispatch.Config {
	c := a.cfg
	return dispatch.Config{
		From:           c.Gmail.From(),
		DailyLimit:     c.Dispatch.DailyLimit,
		SendInterval:   c.Dispatch.SendInterval,
		SkipSent:       c.Dispatch.SkipSent,
		DefaultSubject: c.Dispatch.DefaultSubject,
		DefaultBody:    c.Dispatch.DefaultBody,
		Tracking: dispatch.TrackingConfig{
			Enabled: c.Tracking.Enabled,
			BaseURL: c.Tracking.BaseURL,
			Marker:  c.Tracking.Marker,
		},
	}
}
