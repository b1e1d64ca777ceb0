// Package cmd provides CLI commands for the kiln binary.
package cmd

import "github.com/urfave/cli/v2"

// Shared flags for read-only commands.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// TUIFlag enables Bubble Tea interactive mode.
	// Only valid for the read-only stats commands.
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode (stats only)",
	}

	// GatewayFlag points commands at a running gateway instance.
	GatewayFlag = &cli.StringFlag{
		Name:    "gateway",
		Usage:   "Base URL of the running gateway",
		Value:   "http://localhost:8080",
		EnvVars: []string{"KILN_GATEWAY"},
	}

	// TokenFlag carries the revalidation token for control commands.
	TokenFlag = &cli.StringFlag{
		Name:    "token",
		Usage:   "Revalidation token (Bearer auth)",
		EnvVars: []string{"KILN_REVALIDATE_TOKEN"},
	}
)

// ReadOnlyFlags returns the shared flags for all read-only commands.
// Includes --tui so that unsupported commands can provide explicit error
// messages instead of generic "flag not defined" errors.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		NoColorFlag,
		TUIFlag,
	}
}

// TUIReadOnlyFlags returns flags for commands that support TUI mode.
// This is an alias for ReadOnlyFlags, kept for documentation clarity.
func TUIReadOnlyFlags() []cli.Flag {
	return ReadOnlyFlags()
}

// GatewayFlags returns flags for commands that talk to a running gateway.
func GatewayFlags() []cli.Flag {
	return []cli.Flag{
		GatewayFlag,
		TokenFlag,
	}
}
