package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zulandar/handoff/internal/credentials"
	"github.com/zulandar/handoff/internal/models"
	"golang.org/x/term"
	"gorm.io/gorm/clause"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Remote ticket-system configuration",
	}

	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigTestCmd())
	return cmd
}

func newConfigSetCmd() *cobra.Command {
	var (
		configPath  string
		backend     string
		baseURL     string
		email       string
		llmEndpoint string
		llmModel    string
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Save remote settings and API token",
		Long: `Saves remote ticket-system settings to the local store and the API token
to the OS keyring. The token is prompted without echo and is never written
to a file or the database.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(cmd, configPath, models.RemoteConfig{
				ID:           1,
				Backend:      backend,
				BaseURL:      baseURL,
				AccountEmail: email,
				LLMEndpoint:  llmEndpoint,
				LLMModel:     llmModel,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "handoff.yaml", "path to Handoff config file")
	cmd.Flags().StringVar(&backend, "backend", "jira", "ticket system backend (jira or github)")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "instance base URL, e.g. https://yourteam.atlassian.net (required)")
	cmd.Flags().StringVar(&email, "email", "", "account email the token belongs to (required)")
	cmd.Flags().StringVar(&llmEndpoint, "llm-endpoint", "", "OpenAI-compatible endpoint for summaries")
	cmd.Flags().StringVar(&llmModel, "llm-model", "", "model name for summaries")
	cmd.MarkFlagRequired("base-url")
	cmd.MarkFlagRequired("email")
	return cmd
}

func runConfigSet(cmd *cobra.Command, configPath string, row models.RemoteConfig) error {
	if row.Backend != "jira" && row.Backend != "github" {
		return fmt.Errorf("backend must be jira or github, got %q", row.Backend)
	}

	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	token, err := promptToken(cmd)
	if err != nil {
		return err
	}
	if token == "" {
		return fmt.Errorf("token must not be empty")
	}

	creds := credentials.Keyring{}
	if err := creds.SetToken(row.AccountEmail, token); err != nil {
		return err
	}

	if err := gormDB.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
		return fmt.Errorf("save remote config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Saved %s settings for %s\n", row.Backend, row.AccountEmail)
	fmt.Fprintln(out, "API token stored in the OS keyring.")
	return nil
}

// promptToken reads the API token without echo when stdin is a terminal,
// otherwise reads one line (for piped input).
func promptToken(cmd *cobra.Command) (string, error) {
	out := cmd.OutOrStdout()
	fmt.Fprint(out, "API token: ")

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("read token: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	if !scanner.Scan() {
		return "", fmt.Errorf("read token: no input")
	}
	return strings.TrimSpace(scanner.Text()), nil
}

func newConfigShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show remote settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "handoff.yaml", "path to Handoff config file")
	return cmd
}

func runConfigShow(cmd *cobra.Command, configPath string) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	settings, err := loadRemoteSettings(gormDB, cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Backend:  %s\n", settings.Backend)
	fmt.Fprintf(out, "Base URL: %s\n", settings.BaseURL)
	fmt.Fprintf(out, "Email:    %s\n", settings.Email)
	fmt.Fprintln(out, "Token:    (stored in OS keyring)")
	return nil
}

func newConfigTestCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Test the remote connection",
		Long:  "Fetches the stored token and verifies it against the configured ticket system.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigTest(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "handoff.yaml", "path to Handoff config file")
	return cmd
}

func runConfigTest(cmd *cobra.Command, configPath string) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	settings, err := loadRemoteSettings(gormDB, cfg)
	if err != nil {
		return err
	}
	client, err := buildRemoteClient(settings, credentials.Keyring{})
	if err != nil {
		return err
	}

	account, err := client.TestConnection(context.Background())
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Connection OK — authenticated as %s\n", account)
	return nil
}
