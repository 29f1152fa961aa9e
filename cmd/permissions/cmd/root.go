// Package cmd implements the permissions CLI commands.
//
// A root command carries the global flags (codec, profile directory,
// timeout, verbosity) and dispatches to serve, check, request, probe and
// settings. Every flag can also be set from a PERMISSIONS_* environment
// variable.
package cmd

import (
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/go-drift/permissions/pkg/errors"
)

// Version information set at build time.
var (
	Version   = "0.1.0-dev"
	BuildTime = "unknown"
)

const envPrefix = "PERMISSIONS"

// Execute runs the CLI with os.Args.
func Execute() error {
	return NewRootCommand().Execute()
}

// NewRootCommand builds the command tree with its own settings store.
func NewRootCommand() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "permissions",
		Short: "Check and request device capabilities",
		Long: `permissions drives the capability coordinator against a simulated
native platform described by permissions.yaml. Requests for several
capabilities are batched and report one combined result.`,
		Version:      Version + " (built " + BuildTime + ")",
		SilenceUsage: true,
		PersistentPreRun: func(c *cobra.Command, _ []string) {
			setupLogging(c, v.GetBool("verbose"))
		},
	}

	flags := root.PersistentFlags()
	flags.BoolP("verbose", "v", false, "enable debug logging")
	flags.String("codec", "json", "bridge message codec (json or cbor)")
	flags.String("profile-dir", "", "directory holding permissions.yaml (default: project root)")
	flags.Duration("timeout", 30*time.Second, "how long to wait for a request batch")
	_ = v.BindPFlags(flags)

	root.AddCommand(
		newServeCommand(v),
		newCheckCommand(v),
		newRequestCommand(v),
		newProbeCommand(v),
		newSettingsCommand(v),
	)
	return root
}

func setupLogging(c *cobra.Command, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(c.ErrOrStderr(), &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	errors.SetHandler(&errors.LogHandler{Logger: logger, Verbose: verbose})
}
