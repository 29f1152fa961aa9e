package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/viper"

	"github.com/go-drift/permissions/internal/config"
	"github.com/go-drift/permissions/internal/simulator"
	"github.com/go-drift/permissions/pkg/errors"
	"github.com/go-drift/permissions/pkg/permission"
	"github.com/go-drift/permissions/pkg/platform"
)

// settleGrace is how much longer callers wait for a batch than native
// requests are allowed to take, so an unanswered platform settles as unknown
// instead of timing the whole batch out.
const settleGrace = time.Second

// runtime is a manager wired to the simulated platform.
type runtime struct {
	profile *config.Resolved
	bridge  *simulator.Bridge
	manager *permission.Manager
}

func newRuntime(v *viper.Viper) (*runtime, error) {
	dir := v.GetString("profile-dir")
	if dir == "" {
		root, err := config.FindProjectRoot(".")
		if err != nil {
			errors.Report(&errors.Error{Op: "cmd.profile", Kind: errors.KindConfig, Err: err})
			root = "."
		}
		dir = root
	}

	profile, err := config.Resolve(dir)
	if err != nil {
		return nil, err
	}

	codec, err := platform.CodecByName(v.GetString("codec"))
	if err != nil {
		return nil, fmt.Errorf("--codec: %w", err)
	}
	platform.SetCodec(codec)

	logger := slog.Default()
	bridge := simulator.New(profile, logger.With("component", "simulator"))
	platform.SetNativeBridge(bridge)

	logger.Debug("simulated platform ready",
		"app_id", profile.AppID,
		"profile_dir", dir,
		"domains", len(profile.Domains),
		"codec", v.GetString("codec"),
	)

	return &runtime{
		profile: profile,
		bridge:  bridge,
		manager: permission.NewManager(
			permission.NewChannelAuthorizer(permission.WithAnswerTimeout(v.GetDuration("timeout"))),
			permission.WithLogger(logger),
		),
	}, nil
}

func (r *runtime) Close() {
	r.bridge.Close()
}
