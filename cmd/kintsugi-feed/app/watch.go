package app

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/afnaayusuf/kintsugi/cmd/kintsugi-feed/app/options"
	"github.com/afnaayusuf/kintsugi/internal/dashboard"
	"github.com/afnaayusuf/kintsugi/internal/feed/core"
	"github.com/afnaayusuf/kintsugi/pkg/log"
)

func newWatchCommand(ctx context.Context, opts *options.FeedServerOptions) *cobra.Command {
	var token, vehicleID string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Log in and print telemetry for one vehicle to the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeFn, err := opts.Config()
			if err != nil {
				return err
			}
			defer closeFn()

			feed := dashboard.NewFeed(cfg.Coordinator, cfg.Resolver, cfg.Fleet)
			return watch(ctx, feed, token, vehicleID, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&token, "token", "demo_cli", "Credential to log in with. demo_ tokens run the simulator.")
	cmd.Flags().StringVar(&vehicleID, "vehicle", "", "Vehicle to watch. Defaults to the first vehicle of the fleet.")
	return cmd
}

func watch(ctx context.Context, feed *dashboard.Feed, token, vehicleID string, out io.Writer) error {
	store := feed.Store()
	defer store.OnSnapshot(func(s core.Snapshot) {
		fmt.Fprintln(out, renderSnapshot(s, store.ConnectionState()))
	})()
	defer store.OnConnectionState(func(cs core.ConnectionState) {
		log.Info("Connection state changed", "state", cs)
	})()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return feed.Run(ctx) })
	g.Go(func() error {
		sess, err := feed.LoginTo(ctx, token, vehicleID)
		if err != nil {
			return err
		}
		log.Info("Logged in", "mode", sess.Mode, "subject", sess.Subject)
		return nil
	})
	return g.Wait()
}

func renderSnapshot(s core.Snapshot, cs core.ConnectionState) string {
	table := uitable.New()
	table.MaxColWidth = 60
	table.AddRow("VEHICLE", s.VehicleID, "STATE", cs)
	table.AddRow("SPEED", fmt.Sprintf("%.1f km/h", s.Motion.SpeedKph), "RPM", fmt.Sprintf("%.0f", s.Motion.RPM))
	table.AddRow("GEAR", s.Motion.Gear, "THROTTLE", fmt.Sprintf("%.0f%%", s.Motion.ThrottlePct))
	table.AddRow("BATTERY", fmt.Sprintf("%.2f V", s.Power.BatteryVoltage), "FUEL", fmt.Sprintf("%.0f%%", s.Power.FuelLevelPct))
	table.AddRow("ENGINE", fmt.Sprintf("%.1f °C", s.Power.EngineTempC), "AMBIENT", fmt.Sprintf("%.1f °C", s.Environment.AmbientTempC))
	table.AddRow("GPS", fmt.Sprintf("%.5f, %.5f", s.Environment.GPS.Lat, s.Environment.GPS.Lon), "LATENCY", fmt.Sprintf("%.0f ms", s.SystemHealth.NetworkLatencyMs))

	codes := "none"
	if s.HasFaults() {
		codes = strings.Join(s.Safety.DiagnosticCodes, ", ")
	}
	table.AddRow("DTC", codes, "SYNCED", humanize.Time(s.SystemHealth.LastSync))
	return table.String()
}
