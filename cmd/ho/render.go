package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/handoff/internal/escalation"
	"github.com/zulandar/handoff/internal/models"
	"github.com/zulandar/handoff/internal/render"
)

// newRenderCmd previews the markdown that `ho post` would send, without
// touching the remote or the cached markdown_output.
func newRenderCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "render <id>",
		Short: "Print the markdown an escalation would post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseEscalationID(args[0])
			if err != nil {
				return err
			}
			return runRender(cmd, configPath, id)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "handoff.yaml", "path to Handoff config file")
	return cmd
}

func runRender(cmd *cobra.Command, configPath string, id int64) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	esc, err := escalation.Get(gormDB, id)
	if err != nil {
		if errors.Is(err, escalation.ErrNotFound) {
			return fmt.Errorf("escalation %d not found", id)
		}
		return err
	}

	var tmpl *models.Template
	if esc.TemplateID != nil {
		var loaded models.Template
		if err := gormDB.First(&loaded, *esc.TemplateID).Error; err == nil {
			tmpl = &loaded
		}
	}

	markdown, err := render.Markdown(esc, tmpl)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), markdown)
	return nil
}
