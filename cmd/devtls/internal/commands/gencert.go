package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/wolfeidau/devtls/internal/logger"
	"github.com/wolfeidau/devtls/internal/pki"
)

type GencertCmd struct {
	Cert  string   `help:"where to write the PEM certificate" default:"${install_dir}/cert.pem" env:"DEVTLS_CERT"`
	Key   string   `help:"where to write the PEM private key" default:"${install_dir}/key.pem" env:"DEVTLS_KEY"`
	Hosts []string `name:"host" help:"DNS names and IPs the certificate is valid for" default:"localhost,127.0.0.1,::1"`
	Days  int      `help:"validity period in days" default:"365"`
	Force bool     `help:"overwrite existing files" default:"false"`

	out io.Writer `kong:"-"`
}

func (c *GencertCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)

	kp, err := pki.NewSelfSigned(c.Hosts, time.Duration(c.Days)*24*time.Hour)
	if err != nil {
		return fmt.Errorf("failed to generate certificate: %w", err)
	}

	if err := kp.WriteFiles(c.Cert, c.Key, c.Force); err != nil {
		return err
	}

	log.Debug().Strs("hosts", c.Hosts).Int("days", c.Days).Msg("Generated self-signed certificate")

	out := c.out
	if out == nil {
		out = os.Stdout
	}
	fmt.Fprintf(out, "Wrote certificate to %s\nWrote private key to %s\n", c.Cert, c.Key)
	return nil
}
