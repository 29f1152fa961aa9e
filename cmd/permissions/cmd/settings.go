package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newSettingsCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "settings",
		Short: "Open the app's page in system settings",
		RunE: func(c *cobra.Command, _ []string) error {
			rt, err := newRuntime(v)
			if err != nil {
				return err
			}
			defer rt.Close()

			if !rt.manager.OpenAppSettings(c.Context()) {
				return fmt.Errorf("could not open settings for %s", rt.profile.AppID)
			}
			fmt.Fprintln(c.OutOrStdout(), "opened settings for", rt.profile.AppID)
			return nil
		},
	}
}
