package main

import (
	"errors"
	"fmt"

	"github.com/zulandar/handoff/internal/config"
	"github.com/zulandar/handoff/internal/credentials"
	"github.com/zulandar/handoff/internal/models"
	"github.com/zulandar/handoff/internal/publisher"
	"gorm.io/gorm"
)

// remoteClient is the full surface both ticket-system clients implement.
type remoteClient interface {
	publisher.Publisher
	publisher.Fetcher
	publisher.ConnectionTester
}

// remoteSettings is the resolved remote configuration: the database row
// written by `ho config set` when present, otherwise the YAML config.
type remoteSettings struct {
	Backend string
	BaseURL string
	Email   string
}

// loadRemoteSettings resolves remote settings from the store, falling back
// to the config file.
func loadRemoteSettings(gormDB *gorm.DB, cfg *config.Config) (*remoteSettings, error) {
	var row models.RemoteConfig
	err := gormDB.First(&row, 1).Error
	if err == nil {
		return &remoteSettings{
			Backend: row.Backend,
			BaseURL: row.BaseURL,
			Email:   row.AccountEmail,
		}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("load remote config: %w", err)
	}

	if cfg.Remote.BaseURL == "" {
		return nil, fmt.Errorf("remote is not configured — run `ho config set` first")
	}
	return &remoteSettings{
		Backend: cfg.Remote.Backend,
		BaseURL: cfg.Remote.BaseURL,
		Email:   cfg.Remote.Email,
	}, nil
}

// buildRemoteClient constructs the configured ticket-system client, fetching
// the API token from the credential store at call time.
func buildRemoteClient(settings *remoteSettings, creds credentials.Store) (remoteClient, error) {
	token, err := creds.GetToken(settings.Email)
	if err != nil {
		return nil, err
	}

	switch settings.Backend {
	case "github":
		return publisher.NewGitHub(token)
	default:
		return publisher.NewJira(publisher.JiraOpts{
			BaseURL:  settings.BaseURL,
			Email:    settings.Email,
			APIToken: token,
		})
	}
}
