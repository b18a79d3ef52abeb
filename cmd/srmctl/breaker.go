package main

import (
	"net/url"

	"github.com/spf13/cobra"
)

// NewBreakerCommand groups circuit breaker operations.
func NewBreakerCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "breaker",
		Short: "Inspect and reset the delivery circuit breaker",
	}

	status := &cobra.Command{
		Use:   "status <scope>",
		Short: "Show the breaker state for a scope",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(opts, "GET", "/srm/breaker/"+url.PathEscape(args[0]), nil, cmd.OutOrStdout())
		},
	}

	reset := &cobra.Command{
		Use:   "reset <scope>",
		Short: "Force a scope's breaker back to CLOSED",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(opts, "POST", "/srm/breaker/"+url.PathEscape(args[0])+"/reset", nil, cmd.OutOrStdout())
		},
	}

	cmd.AddCommand(status, reset)
	return cmd
}
