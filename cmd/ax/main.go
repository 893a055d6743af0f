package main

import (
	"fmt"
	"os"

	app "github.com/valter-silva-au/ax-engine/internal"
	"github.com/valter-silva-au/ax-engine/internal/cli"
)

// Set by goreleaser ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.SetVersionInfo(version, commit, date)
	dataDir := app.ResolveBasePath()

	a, err := app.NewApp(dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing ax: %v\n", err)
		os.Exit(1)
	}

	err = cli.Execute()
	_ = a.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
