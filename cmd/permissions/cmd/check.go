package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newCheckCommand(v *viper.Viper) *cobra.Command {
	var asJSON bool

	c := &cobra.Command{
		Use:   "check [capability...]",
		Short: "Show current statuses without prompting",
		Long: `Check reports the current status of each capability without showing
any prompt. With no arguments every supported capability is checked.`,
		RunE: func(c *cobra.Command, args []string) error {
			rt, err := newRuntime(v)
			if err != nil {
				return err
			}
			defer rt.Close()

			caps := parseArgs(args)
			if len(caps) == 0 {
				caps = rt.manager.Registry().Capabilities()
			}
			result, err := rt.manager.CheckAll(c.Context(), caps)
			if err != nil {
				return err
			}
			return printResult(c.OutOrStdout(), result, asJSON)
		},
	}
	c.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return c
}
