package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/handoff/internal/config"
	"github.com/zulandar/handoff/internal/escalation"
	"github.com/zulandar/handoff/internal/llm"
	"github.com/zulandar/handoff/internal/models"
	"gorm.io/gorm"
)

func newSummarizeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "summarize <id>",
		Short: "Generate an AI summary of the troubleshooting work",
		Long: `Sends the escalation's problem statement and checklist to the configured
LLM endpoint and stores the structured summary plus a confidence rating on
the escalation.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSummarize(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "handoff.yaml", "path to Handoff config file")
	return cmd
}

func runSummarize(cmd *cobra.Command, configPath, arg string) error {
	id, err := parseEscalationID(arg)
	if err != nil {
		return err
	}

	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	esc, err := escalation.Get(gormDB, id)
	if err != nil {
		return err
	}
	if !escalation.Status(esc.Status).Editable() {
		return fmt.Errorf("escalation %d is %s and cannot be changed", id, esc.Status)
	}

	endpoint, model := llmSettings(gormDB, cfg)
	client, err := llm.New(llm.Opts{Endpoint: endpoint, Model: model})
	if err != nil {
		return err
	}

	checklist := escalation.ParseChecklist(esc.Checklist)
	result, err := client.Summarize(cmd.Context(), esc.ProblemSummary, checklist)
	if err != nil {
		return err
	}

	err = escalation.Update(gormDB, id, escalation.Input{
		TicketRef:      esc.TicketRef,
		TemplateID:     esc.TemplateID,
		ProblemSummary: esc.ProblemSummary,
		Checklist:      checklist,
		CurrentStatus:  esc.CurrentStatus,
		NextSteps:      esc.NextSteps,
		LLMSummary:     &result.Summary,
		LLMConfidence:  &result.Confidence,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Confidence: %s (%s)\n\n", result.Confidence, result.ConfidenceReason)
	fmt.Fprintln(out, result.Summary)
	return nil
}

// llmSettings resolves the LLM endpoint and model: the row written by
// `ho config set` wins over the config file.
func llmSettings(gormDB *gorm.DB, cfg *config.Config) (endpoint, model string) {
	endpoint, model = cfg.LLM.Endpoint, cfg.LLM.Model

	var row models.RemoteConfig
	if err := gormDB.First(&row, 1).Error; err == nil {
		if row.LLMEndpoint != "" {
			endpoint = row.LLMEndpoint
		}
		if row.LLMModel != "" {
			model = row.LLMModel
		}
	}
	return endpoint, model
}
