package commands

import (
	"github.com/alecthomas/kong"
)

type Globals struct {
	Debug   bool
	Version string
}

// CLI is the devtls command tree. Serve runs when no command is named.
type CLI struct {
	Debug   bool `help:"Enable debug mode." env:"DEVTLS_DEBUG"`
	Version kong.VersionFlag
	Serve   ServeCmd   `cmd:"" default:"withargs" help:"Serve a directory over HTTPS (default)"`
	Gencert GencertCmd `cmd:"" help:"Generate a self-signed certificate and key"`
}

// Options returns the kong options shared by main and tests. installDir is
// substituted into the default cert, key and directory paths.
func Options(installDir, version string) []kong.Option {
	return []kong.Option{
		kong.Name("devtls"),
		kong.Description("Serve a directory over HTTPS for local development."),
		kong.Vars{
			"version":     version,
			"install_dir": installDir,
		},
	}
}
