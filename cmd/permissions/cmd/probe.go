package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/go-drift/permissions/pkg/permission"
)

func newProbeCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "List every known capability and whether this platform supports it",
		RunE: func(c *cobra.Command, _ []string) error {
			rt, err := newRuntime(v)
			if err != nil {
				return err
			}
			defer rt.Close()

			known := permission.KnownCapabilities()
			result, err := rt.manager.CheckAll(c.Context(), known)
			if err != nil {
				return err
			}

			w := c.OutOrStdout()
			supported := 0
			for _, capability := range known {
				mark := "-"
				if _, ok := rt.manager.Registry().Resolve(capability); ok {
					mark = "+"
					supported++
				}
				fmt.Fprintf(w, "%s %-30s %s\n", mark, capability, result[capability])
			}
			fmt.Fprintf(w, "%d of %d capabilities supported (app %s)\n", supported, len(known), rt.profile.AppID)
			return nil
		},
	}
}
