package main

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

// NewDeadLettersCommand groups dead-letter inspection and recovery.
func NewDeadLettersCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "dead-letters",
		Aliases: []string{"dl"},
		Short:   "Inspect and requeue dead-lettered transactions",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List dead-lettered queue entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/srm/dead-letters"
			if limit > 0 {
				path += "?limit=" + url.QueryEscape(fmt.Sprint(limit))
			}
			return call(opts, "GET", path, nil, cmd.OutOrStdout())
		},
	}
	list.Flags().IntVar(&limit, "limit", 0, "maximum entries to return")

	requeue := &cobra.Command{
		Use:   "requeue <entry-id>",
		Short: "Return a dead-lettered entry to the pending queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(opts, "POST", "/srm/dead-letters/"+url.PathEscape(args[0])+"/requeue", nil, cmd.OutOrStdout())
		},
	}

	cmd.AddCommand(list, requeue)
	return cmd
}
