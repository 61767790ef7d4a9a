package main

import (
	"github.com/alecthomas/kong"
)

var (
	version = "dev"
	cli     struct {
		Config  string           `help:"Directory holding config.yaml." default:"./configs" type:"path"`
		Version kong.VersionFlag `help:"Print the version and exit."`

		Serve   ServeCmd   `cmd:"" default:"1" help:"Run the HTTP API."`
		Migrate MigrateCmd `cmd:"" help:"Create or update the database schema and exit."`
	}
)

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("compia-server"),
		kong.Description("Multi-tenant inspection API."),
		kong.Vars{"version": version},
	)
	ctx.FatalIfErrorf(ctx.Run(&Globals{ConfigDir: cli.Config, Version: version}))
}

type Globals struct {
	ConfigDir string
	Version   string
}
