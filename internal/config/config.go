package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultHost     = "0.0.0.0"
	DefaultPort     = 8443
	DefaultCertFile = "cert.pem"
	DefaultKeyFile  = "key.pem"
)

// GenerateCertCommand is printed when the TLS material is missing.
const GenerateCertCommand = `openssl req -x509 -nodes -newkey rsa:2048 -keyout key.pem -out cert.pem -days 365 -subj "/CN=localhost"`

var ErrNotDirectory = errors.New("serve path is not a directory")

// Config is the process wide server configuration. It is resolved once at
// startup and never modified afterwards.
type Config struct {
	Host     string
	Port     int
	CertPath string
	KeyPath  string
	Dir      string

	// OpenPath is the path suggested in the startup banner.
	OpenPath string

	ReadHeaderTimeout time.Duration
	IdleTimeout       time.Duration
	HTTP2             bool
	CORSOrigins       []string
}

// MissingFilesError reports every TLS file which could not be found.
type MissingFilesError struct {
	Paths []string
}

func (e *MissingFilesError) Error() string {
	var b strings.Builder
	b.WriteString("Missing TLS files:\n")
	for _, p := range e.Paths {
		b.WriteString("- ")
		b.WriteString(p)
		b.WriteString("\n")
	}
	b.WriteString("\nGenerate a local cert with:\n  ")
	b.WriteString(GenerateCertCommand)
	b.WriteString("\nor:\n  devtls gencert\n")
	return b.String()
}

// InstallDir returns the directory containing the running executable with
// symlinks expanded.
func InstallDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to locate executable: %w", err)
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return "", fmt.Errorf("failed to resolve executable path: %w", err)
	}
	return filepath.Dir(exe), nil
}

// Defaults returns the configuration used when no flags are given, with
// the cert, key and serve directory located in installDir.
func Defaults(installDir string) Config {
	return Config{
		Host:     DefaultHost,
		Port:     DefaultPort,
		CertPath: filepath.Join(installDir, DefaultCertFile),
		KeyPath:  filepath.Join(installDir, DefaultKeyFile),
		Dir:      installDir,
		OpenPath: "/",
	}
}

// Addr returns the host:port pair to bind.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Resolve returns a copy of the config with every path expanded to an
// absolute, symlink free form. Paths which do not exist are only made
// absolute so they can still be reported by Validate.
func (c Config) Resolve() (Config, error) {
	var err error
	if c.CertPath, err = resolvePath(c.CertPath); err != nil {
		return c, fmt.Errorf("failed to resolve cert path: %w", err)
	}
	if c.KeyPath, err = resolvePath(c.KeyPath); err != nil {
		return c, fmt.Errorf("failed to resolve key path: %w", err)
	}
	if c.Dir, err = resolvePath(c.Dir); err != nil {
		return c, fmt.Errorf("failed to resolve serve directory: %w", err)
	}
	return c, nil
}

// Validate checks the config before any socket is opened.
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be between 0 and 65535", c.Port)
	}

	var missing []string
	for _, p := range []string{c.CertPath, c.KeyPath} {
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				missing = append(missing, p)
				continue
			}
			return fmt.Errorf("failed to stat %s: %w", p, err)
		}
	}
	if len(missing) > 0 {
		return &MissingFilesError{Paths: missing}
	}

	info, err := os.Stat(c.Dir)
	if err != nil {
		return fmt.Errorf("serve directory %s: %w", c.Dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: %w", c.Dir, ErrNotDirectory)
	}

	return nil
}

func resolvePath(p string) (string, error) {
	p, err := expandHome(p)
	if err != nil {
		return "", err
	}
	p, err = filepath.Abs(p)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return p, nil
		}
		return "", err
	}
	return resolved, nil
}

func expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to expand %s: %w", p, err)
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}
