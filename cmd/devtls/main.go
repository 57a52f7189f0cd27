package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/devtls/cmd/devtls/internal/commands"
	"github.com/wolfeidau/devtls/internal/config"
)

var (
	version = "dev"
	cli     commands.CLI
)

func main() {
	ctx := context.Background()

	installDir, err := config.InstallDir()
	if err != nil {
		installDir = "."
	}

	opts := append(commands.Options(installDir, version),
		kong.BindTo(ctx, (*context.Context)(nil)))
	cmd := kong.Parse(&cli, opts...)
	err = cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
