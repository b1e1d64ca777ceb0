package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/kiln/cli/client"
	"github.com/pithecene-io/kiln/cli/render"
)

// RevalidateCommand returns the revalidate command with subcommands.
// Revalidation is the only mutating CLI surface; it requires the
// gateway's revalidation token.
func RevalidateCommand() *cli.Command {
	return &cli.Command{
		Name:  "revalidate",
		Usage: "Invalidate cached artifacts on a running gateway",
		Subcommands: []*cli.Command{
			revalidatePathCommand(),
			revalidateTagCommand(),
		},
	}
}

func revalidatePathCommand() *cli.Command {
	return &cli.Command{
		Name:      "path",
		Usage:     "Drop and regenerate the artifact for a pathname",
		ArgsUsage: "<pathname>",
		Flags:     append(ReadOnlyFlags(), GatewayFlags()...),
		Action:    revalidatePathAction,
	}
}

func revalidatePathAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: kiln revalidate path <pathname>", 1)
	}
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for revalidate commands", 1)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	gw, err := gatewayClient(c)
	if err != nil {
		return err
	}

	result, err := gw.RevalidatePath(c.Context, c.Args().First())
	if err != nil {
		return fmt.Errorf("revalidate path: %w", err)
	}

	return r.Render(result)
}

func revalidateTagCommand() *cli.Command {
	return &cli.Command{
		Name:      "tag",
		Usage:     "Invalidate every cache entry carrying a tag",
		ArgsUsage: "<tag>",
		Flags:     append(ReadOnlyFlags(), GatewayFlags()...),
		Action:    revalidateTagAction,
	}
}

func revalidateTagAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: kiln revalidate tag <tag>", 1)
	}
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for revalidate commands", 1)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	gw, err := gatewayClient(c)
	if err != nil {
		return err
	}

	result, err := gw.RevalidateTag(c.Context, c.Args().First())
	if err != nil {
		return fmt.Errorf("revalidate tag: %w", err)
	}

	return r.Render(result)
}

func gatewayClient(c *cli.Context) (*client.Client, error) {
	return client.New(c.String("gateway"), c.String("token"))
}
