package commands

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfeidau/devtls/internal/config"
	"github.com/wolfeidau/devtls/internal/pki"
)

func parse(t *testing.T, installDir string, args ...string) (*CLI, *kong.Context) {
	t.Helper()

	var cli CLI
	parser, err := kong.New(&cli, Options(installDir, "test")...)
	require.NoError(t, err)

	kctx, err := parser.Parse(args)
	require.NoError(t, err)
	return &cli, kctx
}

func TestServeCmd_defaults(t *testing.T) {
	installDir := "/opt/devtls"

	cli, kctx := parse(t, installDir)
	require.Equal(t, "serve", kctx.Command())

	cfg := cli.Serve.Config()
	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 8443, cfg.Port)
	assert.Equal(t, installDir+"/cert.pem", cfg.CertPath)
	assert.Equal(t, installDir+"/key.pem", cfg.KeyPath)
	assert.Equal(t, installDir, cfg.Dir)
	assert.Equal(t, "/", cfg.OpenPath)
	assert.Zero(t, cfg.ReadHeaderTimeout)
	assert.Zero(t, cfg.IdleTimeout)
	assert.False(t, cfg.HTTP2)
	assert.Empty(t, cfg.CORSOrigins)
	assert.False(t, cli.Serve.Tracing)
}

func TestServeCmd_flags(t *testing.T) {
	cli, _ := parse(t, "/opt/devtls",
		"--host", "127.0.0.1",
		"--port", "9443",
		"--cert", "/tmp/c.pem",
		"--key", "/tmp/k.pem",
		"--dir", "/srv/www",
		"--idle-timeout", "30s",
		"--http2",
		"--cors-origin", "https://a.localhost",
		"--cors-origin", "https://b.localhost",
	)

	cfg := cli.Serve.Config()
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 9443, cfg.Port)
	assert.Equal(t, "/tmp/c.pem", cfg.CertPath)
	assert.Equal(t, "/tmp/k.pem", cfg.KeyPath)
	assert.Equal(t, "/srv/www", cfg.Dir)
	assert.Equal(t, 30*time.Second, cfg.IdleTimeout)
	assert.True(t, cfg.HTTP2)
	assert.Equal(t, []string{"https://a.localhost", "https://b.localhost"}, cfg.CORSOrigins)
}

func TestServeCmd_env(t *testing.T) {
	t.Setenv("DEVTLS_PORT", "10443")
	t.Setenv("DEVTLS_DIR", "/srv/env")

	cli, _ := parse(t, "/opt/devtls")
	assert.Equal(t, 10443, cli.Serve.Port)
	assert.Equal(t, "/srv/env", cli.Serve.Dir)
}

func TestServeCmd_explicitCommand(t *testing.T) {
	cli, kctx := parse(t, "/opt/devtls", "serve", "--port", "9000")
	require.Equal(t, "serve", kctx.Command())
	require.Equal(t, 9000, cli.Serve.Port)
}

func TestServeCmd_Run_missingFiles(t *testing.T) {
	tmpDir := t.TempDir()

	cmd := &ServeCmd{
		Host: "127.0.0.1",
		Port: 0,
		Cert: filepath.Join(tmpDir, "cert.pem"),
		Key:  filepath.Join(tmpDir, "key.pem"),
		Dir:  tmpDir,
	}

	err := cmd.Run(context.Background(), &Globals{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Missing TLS files")
	assert.Contains(t, err.Error(), config.GenerateCertCommand)
}

func TestGencertCmd_Run(t *testing.T) {
	tmpDir := t.TempDir()
	var out bytes.Buffer

	cmd := &GencertCmd{
		Cert:  filepath.Join(tmpDir, "cert.pem"),
		Key:   filepath.Join(tmpDir, "key.pem"),
		Hosts: []string{"localhost", "127.0.0.1"},
		Days:  30,
		out:   &out,
	}

	err := cmd.Run(context.Background(), &Globals{})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Wrote certificate to "+cmd.Cert)

	cert, err := pki.LoadKeyPair(cmd.Cert, cmd.Key)
	require.NoError(t, err)
	require.NoError(t, cert.Leaf.VerifyHostname("localhost"))

	// a second run without --force leaves the pair alone
	err = cmd.Run(context.Background(), &Globals{})
	require.ErrorIs(t, err, pki.ErrExists)

	cmd.Force = true
	require.NoError(t, cmd.Run(context.Background(), &Globals{}))
}

func TestGencertCmd_defaults(t *testing.T) {
	cli, kctx := parse(t, "/opt/devtls", "gencert")
	require.Equal(t, "gencert", kctx.Command())

	assert.Equal(t, "/opt/devtls/cert.pem", cli.Gencert.Cert)
	assert.Equal(t, "/opt/devtls/key.pem", cli.Gencert.Key)
	assert.Equal(t, []string{"localhost", "127.0.0.1", "::1"}, cli.Gencert.Hosts)
	assert.Equal(t, 365, cli.Gencert.Days)
}
