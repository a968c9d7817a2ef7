package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zulandar/handoff/internal/config"
	"github.com/zulandar/handoff/internal/credentials"
	"github.com/zulandar/handoff/internal/db"
	"github.com/zulandar/handoff/internal/models"
)

// writeRemoteTestConfig includes a remote section in the YAML config.
func writeRemoteTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "handoff.yaml")
	content := fmt.Sprintf(`store:
  backend: sqlite
  path: %s
remote:
  backend: jira
  base_url: https://example.atlassian.net
  email: me@example.com
`, filepath.Join(dir, "handoff.db"))
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("write test config: %v", err)
	}
	return configPath
}

func TestLoadRemoteSettings_FromConfigFile(t *testing.T) {
	configPath := writeRemoteTestConfig(t)
	cfg, err := config.Load(configPath)
	if err != nil {
		t.Fatal(err)
	}
	gormDB, err := db.Connect(cfg.Store)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		t.Fatal(err)
	}

	settings, err := loadRemoteSettings(gormDB, cfg)
	if err != nil {
		t.Fatalf("loadRemoteSettings: %v", err)
	}
	if settings.Backend != "jira" || settings.BaseURL != "https://example.atlassian.net" {
		t.Errorf("settings = %+v", settings)
	}
}

func TestLoadRemoteSettings_DBRowWins(t *testing.T) {
	configPath := writeRemoteTestConfig(t)
	cfg, err := config.Load(configPath)
	if err != nil {
		t.Fatal(err)
	}
	gormDB, err := db.Connect(cfg.Store)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		t.Fatal(err)
	}
	row := models.RemoteConfig{ID: 1, Backend: "github", BaseURL: "https://github.com", AccountEmail: "other@example.com"}
	if err := gormDB.Create(&row).Error; err != nil {
		t.Fatal(err)
	}

	settings, err := loadRemoteSettings(gormDB, cfg)
	if err != nil {
		t.Fatalf("loadRemoteSettings: %v", err)
	}
	if settings.Backend != "github" || settings.Email != "other@example.com" {
		t.Errorf("settings = %+v", settings)
	}
}

func TestLoadRemoteSettings_Unconfigured(t *testing.T) {
	configPath := writeTestConfig(t)
	cfg, err := config.Load(configPath)
	if err != nil {
		t.Fatal(err)
	}
	gormDB, err := db.Connect(cfg.Store)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		t.Fatal(err)
	}

	if _, err := loadRemoteSettings(gormDB, cfg); err == nil {
		t.Error("expected error when remote is not configured")
	}
}

func TestBuildRemoteClient(t *testing.T) {
	creds := credentials.NewMemory()
	creds.SetToken("me@example.com", "tok-123")

	jira, err := buildRemoteClient(&remoteSettings{
		Backend: "jira",
		BaseURL: "https://example.atlassian.net",
		Email:   "me@example.com",
	}, creds)
	if err != nil {
		t.Fatalf("jira: %v", err)
	}
	if jira == nil {
		t.Fatal("jira client is nil")
	}

	github, err := buildRemoteClient(&remoteSettings{
		Backend: "github",
		BaseURL: "https://github.com",
		Email:   "me@example.com",
	}, creds)
	if err != nil {
		t.Fatalf("github: %v", err)
	}
	if github == nil {
		t.Fatal("github client is nil")
	}
}

func TestBuildRemoteClient_MissingToken(t *testing.T) {
	creds := credentials.NewMemory()

	_, err := buildRemoteClient(&remoteSettings{
		Backend: "jira",
		BaseURL: "https://example.atlassian.net",
		Email:   "me@example.com",
	}, creds)
	if !errors.Is(err, credentials.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestConfigShow_FromConfigFile(t *testing.T) {
	configPath := writeRemoteTestConfig(t)
	initTestDB(t, configPath)

	out, err := runCLI(t, "", "config", "show", "-c", configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	for _, want := range []string{"jira", "https://example.atlassian.net", "me@example.com", "OS keyring"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
