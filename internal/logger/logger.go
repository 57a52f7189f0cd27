package logger

import (
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

func Setup(dev bool) zerolog.Logger {
	return New(os.Stderr, dev)
}

func New(w io.Writer, dev bool) zerolog.Logger {
	var logger zerolog.Logger
	level := zerolog.InfoLevel
	if dev {
		level = zerolog.DebugLevel
	}

	logger = zerolog.New(w).Level(level).With().Timestamp().Caller().Logger()

	if dev {
		logger = logger.Output(zerolog.ConsoleWriter{Out: w, FormatTimestamp: func(i any) string {
			return time.Now().Format(time.RFC3339)
		}}).Level(level).With().Stack().Logger()
	}

	return logger
}

// ServerErrorLog adapts a zerolog logger for use as http.Server.ErrorLog.
// net/http reports per connection failures such as TLS handshake errors
// here. onHandshakeError, when set, is called for each handshake failure.
func ServerErrorLog(logger zerolog.Logger, onHandshakeError func()) *log.Logger {
	return log.New(&serverErrorWriter{logger: logger, onHandshakeError: onHandshakeError}, "", 0)
}

type serverErrorWriter struct {
	logger           zerolog.Logger
	onHandshakeError func()
}

func (w *serverErrorWriter) Write(p []byte) (int, error) {
	msg := strings.TrimSpace(string(p))

	// browsers which do not trust the certificate abort the handshake
	if strings.Contains(msg, "TLS handshake error") {
		if w.onHandshakeError != nil {
			w.onHandshakeError()
		}
		w.logger.Debug().Str("component", "http").Msg(msg)
		return len(p), nil
	}

	w.logger.Warn().Str("component", "http").Msg(msg)
	return len(p), nil
}
