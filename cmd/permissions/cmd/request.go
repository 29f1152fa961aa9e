package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newRequestCommand(v *viper.Viper) *cobra.Command {
	var asJSON bool

	c := &cobra.Command{
		Use:   "request capability...",
		Short: "Request capabilities as one batch",
		Long: `Request asks for every listed capability at once and prints the combined
result after all of them have settled. Duplicates are requested once and
unsupported capabilities report unknown, as do capabilities the platform
does not answer within --timeout.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			rt, err := newRuntime(v)
			if err != nil {
				return err
			}
			defer rt.Close()

			timeout := v.GetDuration("timeout")
			ctx, cancel := context.WithTimeout(c.Context(), timeout+settleGrace)
			defer cancel()

			result, err := rt.manager.Request(ctx, parseArgs(args)...)
			if err != nil {
				return fmt.Errorf("request did not settle within %s: %w", timeout, err)
			}
			return printResult(c.OutOrStdout(), result, asJSON)
		},
	}
	c.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return c
}
