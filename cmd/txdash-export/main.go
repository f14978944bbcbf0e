// Command txdash-export copies the transaction data set to an external sink,
// or seeds a persistent backend without starting the API.
package main

import (
	"github.com/alecthomas/kong"

	"txdash/internal/cli"
	applog "txdash/internal/log"
)

// Globals holds options shared by every command.
type Globals struct {
	Backend      string `help:"Data backend [memory sqlite postgres]." env:"DATA_BACKEND" default:"memory"`
	SQLiteDBPath string `name:"sqlite-path" help:"SQLite database file." env:"SQLITE_DB_PATH" default:"./data/txdash.db"`
	DatabaseURL  string `name:"database-url" help:"Postgres connection string." env:"DATABASE_URL"`

	logger *applog.Logger
}

var commands struct {
	Globals `embed:""`

	Export exportCmd `cmd:"" help:"Write every transaction to a sink."`
	Seed   seedCmd   `cmd:"" help:"Load the seed feed into the backend and exit."`
}

func main() {
	cli.LoadEnvFile()
	commands.logger = cli.SetupLogger()

	ctx := kong.Parse(&commands,
		kong.Name("txdash-export"),
		kong.Description("Export and seeding tools for the txdash data set."),
		kong.UsageOnError(),
	)
	err := ctx.Run(&commands.Globals)
	ctx.FatalIfErrorf(err)
}
