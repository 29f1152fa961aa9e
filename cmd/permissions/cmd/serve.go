package cmd

import (
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/go-drift/permissions/internal/server"
)

func newServeCommand(v *viper.Viper) *cobra.Command {
	c := &cobra.Command{
		Use:   "serve",
		Short: "Serve the permission API over HTTP",
		Long: `Serve exposes checks, batched requests, settings navigation and a
websocket feed of authorization changes.`,
		RunE: func(c *cobra.Command, _ []string) error {
			rt, err := newRuntime(v)
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx, stop := signal.NotifyContext(c.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := slog.Default()
			api := server.New(rt.manager, logger.With("component", "http"), v.GetDuration("timeout")+settleGrace)
			srv := &http.Server{
				Addr:              v.GetString("listen"),
				Handler:           api.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			logger.Info("serving permissions API", "addr", srv.Addr, "app_id", rt.profile.AppID)
			return server.RunServer(ctx, srv, logger)
		},
	}
	c.Flags().String("listen", ":8080", "address to listen on")
	_ = v.BindPFlag("listen", c.Flags().Lookup("listen"))
	return c
}
