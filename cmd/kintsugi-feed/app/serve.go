package app

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/afnaayusuf/kintsugi/cmd/kintsugi-feed/app/options"
	"github.com/afnaayusuf/kintsugi/pkg/log"
)

func newServeCommand(ctx context.Context, opts *options.FeedServerOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeFn, err := opts.Config()
			if err != nil {
				log.Error(err, "failed to build configuration")
				return err
			}
			defer closeFn()

			srv, err := cfg.NewServer()
			if err != nil {
				log.Error(err, "failed to create dashboard server")
				return err
			}

			log.Info("Starting kintsugi-feed", "addr", opts.HttpOptions.Addr, "mode", opts.FeedOptions.Mode)
			if err := srv.Run(ctx); err != nil {
				log.Error(err, "dashboard server exited")
				return err
			}
			return nil
		},
	}
}
