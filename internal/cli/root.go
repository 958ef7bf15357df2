package cli

import "github.com/alecthomas/kong"

type CLI struct {
	GlobalOptions `embed:""`

	Version kong.VersionFlag `help:"Print version and exit"`

	Check   CheckCmd   `cmd:"" help:"Validate the API token"`
	Streams StreamsCmd `cmd:"" help:"List available streams"`
	Read    ReadCmd    `cmd:"" help:"Read records from monday.com"`
	State   StateCmd   `cmd:"" help:"Inspect and migrate saved sync state"`
}

func outputFor(ctx *commandContext) output {
	return output{Out: ctx.deps.Out, JSON: ctx.global.JSON}
}
