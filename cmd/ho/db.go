package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/handoff/internal/config"
	"github.com/zulandar/handoff/internal/db"
	"gorm.io/gorm"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	cmd.AddCommand(newDBResetCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the Handoff database",
		Long:  "Connects to the configured store, migrates all tables, and seeds the built-in escalation templates.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "handoff.yaml", "path to Handoff config file")
	return cmd
}

func runDBInit(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(cfg.Store)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Connected to %s store\n", cfg.Store.Backend)

	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))

	if err := db.SeedTemplates(gormDB); err != nil {
		return err
	}
	fmt.Fprintln(out, "Seeded escalation templates")

	fmt.Fprintln(out, "\nHandoff database initialized successfully.")
	return nil
}

func newDBResetCmd() *cobra.Command {
	var (
		configPath string
		yes        bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop and re-initialize the Handoff database",
		Long:  "Drops all Handoff tables, including every escalation and its audit trail, then re-migrates and re-seeds.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBReset(cmd, configPath, yes)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "handoff.yaml", "path to Handoff config file")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	return cmd
}

func runDBReset(cmd *cobra.Command, configPath string, skipConfirm bool) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if !skipConfirm && !confirmReset(cmd) {
		fmt.Fprintln(out, "Aborted.")
		return nil
	}

	gormDB, err := db.Connect(cfg.Store)
	if err != nil {
		return err
	}

	if err := dropTables(gormDB); err != nil {
		return err
	}
	fmt.Fprintln(out, "Dropped all tables")

	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))

	if err := db.SeedTemplates(gormDB); err != nil {
		return err
	}
	fmt.Fprintln(out, "Seeded escalation templates")

	fmt.Fprintln(out, "\nHandoff database reset successfully.")
	return nil
}

func dropTables(gormDB *gorm.DB) error {
	if err := gormDB.Migrator().DropTable(db.AllModels()...); err != nil {
		return fmt.Errorf("drop tables: %w", err)
	}
	return nil
}

func confirmReset(cmd *cobra.Command) bool {
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "WARNING: This will permanently delete every escalation and its audit trail.")
	fmt.Fprintln(out, "This action cannot be undone.")
	fmt.Fprintln(out)
	fmt.Fprint(out, "Type \"yes\" to confirm: ")

	return readConfirmation(cmd)
}
