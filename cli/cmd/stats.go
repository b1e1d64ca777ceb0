package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/kiln/cli/client"
	"github.com/pithecene-io/kiln/cli/render"
	"github.com/pithecene-io/kiln/metrics"
)

// StatsCommand returns the stats command with subcommands.
// All stats come from the running gateway's metrics snapshot.
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show gateway statistics (passes, fetches, cache, revalidations)",
		Subcommands: []*cli.Command{
			statsPassesCommand(),
			statsFetchesCommand(),
			statsCacheCommand(),
			statsRevalidationsCommand(),
			statsSnapshotCommand(),
		},
	}
}

func statsPassesCommand() *cli.Command {
	return &cli.Command{
		Name:   "passes",
		Usage:  "Show render pass statistics",
		Flags:  append(TUIReadOnlyFlags(), GatewayFlag),
		Action: statsAction("stats_passes"),
	}
}

func statsFetchesCommand() *cli.Command {
	return &cli.Command{
		Name:   "fetches",
		Usage:  "Show outbound fetch statistics",
		Flags:  append(TUIReadOnlyFlags(), GatewayFlag),
		Action: statsAction("stats_fetches"),
	}
}

func statsCacheCommand() *cli.Command {
	return &cli.Command{
		Name:   "cache",
		Usage:  "Show incremental cache statistics",
		Flags:  append(TUIReadOnlyFlags(), GatewayFlag),
		Action: statsAction("stats_cache"),
	}
}

func statsRevalidationsCommand() *cli.Command {
	return &cli.Command{
		Name:   "revalidations",
		Usage:  "Show revalidation statistics",
		Flags:  append(TUIReadOnlyFlags(), GatewayFlag),
		Action: statsAction("stats_revalidations"),
	}
}

func statsSnapshotCommand() *cli.Command {
	return &cli.Command{
		Name:  "snapshot",
		Usage: "Show the raw metrics snapshot",
		Flags: append(ReadOnlyFlags(), GatewayFlag),
		Action: func(c *cli.Context) error {
			r, err := render.NewRenderer(c)
			if err != nil {
				return err
			}
			if c.Bool("tui") {
				return cli.Exit("--tui is not supported for stats snapshot", 1)
			}

			snap, err := fetchSnapshot(c)
			if err != nil {
				return err
			}
			return r.Render(snap)
		},
	}
}

func statsAction(viewType string) cli.ActionFunc {
	return func(c *cli.Context) error {
		r, err := render.NewRenderer(c)
		if err != nil {
			return err
		}

		snap, err := fetchSnapshot(c)
		if err != nil {
			return err
		}

		if c.Bool("tui") {
			return r.RenderTUI(viewType, snap)
		}

		return r.Render(snap)
	}
}

func fetchSnapshot(c *cli.Context) (*metrics.Snapshot, error) {
	gw, err := client.New(c.String("gateway"), "")
	if err != nil {
		return nil, err
	}
	return gw.Metrics(c.Context)
}
