package main

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/handoff/internal/config"
	"github.com/zulandar/handoff/internal/db"
	"github.com/zulandar/handoff/internal/escalation"
	"github.com/zulandar/handoff/internal/models"
	"gorm.io/gorm"
)

// connectFromConfig loads config and returns a GORM DB connection.
func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(cfg.Store)
	if err != nil {
		return nil, nil, err
	}

	return cfg, gormDB, nil
}

// parseEscalationID converts a CLI argument to an escalation id.
func parseEscalationID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid escalation id %q", arg)
	}
	return id, nil
}

func newNewCmd() *cobra.Command {
	var (
		configPath string
		ticketRef  string
		templateID int64
		summary    string
		status     string
		nextSteps  string
		steps      []string
		done       []string
	)

	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create a new escalation draft",
		Long:  "Creates an escalation in draft status. Use --done for completed troubleshooting steps and --step for ones not yet attempted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := escalation.Input{
				TicketRef:      ticketRef,
				ProblemSummary: summary,
				CurrentStatus:  status,
				NextSteps:      nextSteps,
			}
			if cmd.Flags().Changed("template") {
				in.TemplateID = &templateID
			}
			for _, text := range done {
				in.Checklist = append(in.Checklist, models.ChecklistItem{Text: text, Checked: true})
			}
			for _, text := range steps {
				in.Checklist = append(in.Checklist, models.ChecklistItem{Text: text})
			}
			return runNew(cmd, configPath, in)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "handoff.yaml", "path to Handoff config file")
	cmd.Flags().StringVar(&ticketRef, "ticket", "", "ticket reference, e.g. SUP-1234 or owner/repo#42 (required)")
	cmd.Flags().Int64Var(&templateID, "template", 0, "template id to base the checklist on")
	cmd.Flags().StringVar(&summary, "summary", "", "problem summary")
	cmd.Flags().StringVar(&status, "status", "", "current status notes")
	cmd.Flags().StringVar(&nextSteps, "next", "", "suggested next steps for L2")
	cmd.Flags().StringArrayVar(&done, "done", nil, "completed troubleshooting step (repeatable)")
	cmd.Flags().StringArrayVar(&steps, "step", nil, "troubleshooting step not yet attempted (repeatable)")
	cmd.MarkFlagRequired("ticket")
	return cmd
}

func runNew(cmd *cobra.Command, configPath string, in escalation.Input) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	esc, err := escalation.Create(gormDB, in)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created escalation %d for %s\n", esc.ID, esc.TicketRef)
	return nil
}

func newListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List escalations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "handoff.yaml", "path to Handoff config file")
	return cmd
}

func runList(cmd *cobra.Command, configPath string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	summaries, err := escalation.List(gormDB)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(summaries) == 0 {
		fmt.Fprintln(out, "No escalations found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTICKET\tSTATUS\tSUMMARY\tCREATED")
	for _, s := range summaries {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			s.ID, s.TicketRef, s.Status, truncate(s.ProblemSummary, 40),
			s.CreatedAt.Format("2006-01-02 15:04"))
	}
	w.Flush()
	return nil
}

func newShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show escalation details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "handoff.yaml", "path to Handoff config file")
	return cmd
}

func runShow(cmd *cobra.Command, configPath, arg string) error {
	id, err := parseEscalationID(arg)
	if err != nil {
		return err
	}

	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	esc, err := escalation.Get(gormDB, id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:       %d\n", esc.ID)
	fmt.Fprintf(out, "Ticket:   %s\n", esc.TicketRef)
	fmt.Fprintf(out, "Status:   %s\n", esc.Status)
	if esc.TemplateID != nil {
		fmt.Fprintf(out, "Template: %d\n", *esc.TemplateID)
	}
	fmt.Fprintf(out, "Created:  %s\n", esc.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Updated:  %s\n", esc.UpdatedAt.Format("2006-01-02 15:04:05"))
	if esc.PostedAt != nil {
		fmt.Fprintf(out, "Posted:   %s\n", esc.PostedAt.Format("2006-01-02 15:04:05"))
	}

	if esc.ProblemSummary != "" {
		fmt.Fprintf(out, "\nProblem:\n%s\n", esc.ProblemSummary)
	}
	checklist := escalation.ParseChecklist(esc.Checklist)
	if len(checklist) > 0 {
		fmt.Fprintln(out, "\nChecklist:")
		for _, item := range checklist {
			checkbox := "[ ]"
			if item.Checked {
				checkbox = "[x]"
			}
			fmt.Fprintf(out, "  %s %s\n", checkbox, item.Text)
		}
	}
	if esc.CurrentStatus != "" {
		fmt.Fprintf(out, "\nCurrent status:\n%s\n", esc.CurrentStatus)
	}
	if esc.NextSteps != "" {
		fmt.Fprintf(out, "\nNext steps:\n%s\n", esc.NextSteps)
	}
	if esc.LLMSummary != nil {
		fmt.Fprintf(out, "\nAI summary")
		if esc.LLMConfidence != nil {
			fmt.Fprintf(out, " (confidence: %s)", *esc.LLMConfidence)
		}
		fmt.Fprintf(out, ":\n%s\n", *esc.LLMSummary)
	}
	return nil
}

func newDeleteCmd() *cobra.Command {
	var (
		configPath string
		yes        bool
	)

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an escalation and its audit trail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(cmd, configPath, args[0], yes)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "handoff.yaml", "path to Handoff config file")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	return cmd
}

func runDelete(cmd *cobra.Command, configPath, arg string, skipConfirm bool) error {
	id, err := parseEscalationID(arg)
	if err != nil {
		return err
	}

	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !skipConfirm {
		fmt.Fprintf(out, "Delete escalation %d and its audit trail? Type \"yes\" to confirm: ", id)
		if !readConfirmation(cmd) {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	if err := escalation.Delete(gormDB, id); err != nil {
		return err
	}
	fmt.Fprintf(out, "Deleted escalation %d\n", id)
	return nil
}

func newAuditCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "audit <id>",
		Short: "Show the audit trail of an escalation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "handoff.yaml", "path to Handoff config file")
	return cmd
}

func runAudit(cmd *cobra.Command, configPath, arg string) error {
	id, err := parseEscalationID(arg)
	if err != nil {
		return err
	}

	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	if _, err := escalation.Get(gormDB, id); err != nil {
		return err
	}
	history, err := escalation.AuditHistory(gormDB, id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(history) == 0 {
		fmt.Fprintf(out, "No audit entries for escalation %d\n", id)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tACTION\tDETAILS")
	for _, entry := range history {
		details := "-"
		if entry.Details != nil {
			details = *entry.Details
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n",
			entry.CreatedAt.Format("2006-01-02 15:04:05"), entry.Action, details)
	}
	w.Flush()
	return nil
}

// readConfirmation reads one line from stdin and requires a literal "yes".
func readConfirmation(cmd *cobra.Command) bool {
	scanner := bufio.NewScanner(cmd.InOrStdin())
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()) == "yes"
	}
	return false
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
