// Package app wires the kintsugi-feed command line.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/afnaayusuf/kintsugi/cmd/kintsugi-feed/app/options"
	"github.com/afnaayusuf/kintsugi/pkg/log"
)

const envPrefix = "KINTSUGI"

// NewRootCommand returns the kintsugi-feed command with its serve and
// watch subcommands. Options are read from flags, then KINTSUGI_*
// environment variables, then the --config file.
func NewRootCommand(ctx context.Context) *cobra.Command {
	opts := options.NewFeedServerOptions()
	var configFile string

	cmd := &cobra.Command{
		Use:          "kintsugi-feed",
		Short:        "Vehicle telemetry feed for the Kintsugi dashboard",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(cmd, configFile, opts); err != nil {
				return err
			}
			log.Init(opts.Log)
			return opts.Validate()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = log.Sync()
		},
	}

	fs := cmd.PersistentFlags()
	fs.StringVarP(&configFile, "config", "c", "", "Path to a configuration file (yaml, json or toml).")
	opts.AddFlags(fs)

	cmd.AddCommand(newServeCommand(ctx, opts))
	cmd.AddCommand(newWatchCommand(ctx, opts))
	return cmd
}

func loadConfig(cmd *cobra.Command, configFile string, opts *options.FeedServerOptions) error {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}
	for _, fs := range []*pflag.FlagSet{cmd.Root().PersistentFlags(), cmd.Flags()} {
		if err := v.BindPFlags(fs); err != nil {
			return err
		}
	}
	if err := v.Unmarshal(opts); err != nil {
		return fmt.Errorf("failed to decode configuration: %w", err)
	}
	return nil
}
