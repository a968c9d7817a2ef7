package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/handoff/internal/credentials"
)

func newTicketCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "ticket <ref>",
		Short: "Fetch a ticket from the remote system",
		Long:  "Fetches a ticket's summary, status and recent comments, e.g. to verify the reference before creating an escalation.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTicket(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "handoff.yaml", "path to Handoff config file")
	return cmd
}

func runTicket(cmd *cobra.Command, configPath, ref string) error {
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

	ticket, err := client.FetchTicket(cmd.Context(), ref)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Ticket:   %s\n", ticket.Ref)
	fmt.Fprintf(out, "Summary:  %s\n", ticket.Summary)
	fmt.Fprintf(out, "Status:   %s\n", ticket.Status)
	if ticket.Reporter != "" {
		fmt.Fprintf(out, "Reporter: %s\n", ticket.Reporter)
	}
	if ticket.Assignee != "" {
		fmt.Fprintf(out, "Assignee: %s\n", ticket.Assignee)
	}
	if ticket.Description != "" {
		fmt.Fprintf(out, "\nDescription:\n%s\n", ticket.Description)
	}
	if len(ticket.Comments) > 0 {
		fmt.Fprintf(out, "\nRecent comments (%d):\n", len(ticket.Comments))
		for _, comment := range ticket.Comments {
			fmt.Fprintf(out, "  [%s] %s: %s\n",
				comment.Created, comment.Author, truncate(comment.Body, 80))
		}
	}
	return nil
}
