package main

import (
	"context"
	"os"

	"github.com/touchthesun/marvin-sub002/internal/cmd"
	"github.com/touchthesun/marvin-sub002/internal/server/handlers"
)

// Populated at build time via -ldflags.
var (
	version   = "dev"
	commit    = "HEAD"
	buildDate = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, buildDate)
	handlers.Version = version
	handlers.GitCommit = commit
	handlers.BuildDate = buildDate

	os.Exit(cmd.Execute(context.Background()))
}
