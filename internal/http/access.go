package http

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// AccessLog attaches logger to each request context, tags it with a request
// id and client ip, and logs one line per completed request.
func AccessLog(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		h := hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
			hlog.FromRequest(r).Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("proto", r.Proto).
				Int("status", status).
				Int("size", size).
				Dur("duration", duration).
				Msg("request")
		})(next)

		h = requestFields()(h)
		h = ClientIPMiddleware()(h)

		return hlog.NewHandler(logger)(h)
	}
}

func requestFields() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := uuid.NewString()
			ip := ClientIPFromContext(r.Context())
			zerolog.Ctx(r.Context()).UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("req_id", id).Str("client_ip", ip)
			})
			next.ServeHTTP(w, r)
		})
	}
}

// Recover turns a handler panic into a 500 response so that a fault while
// serving one request never takes down the connection's peers.
func Recover(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				e := recover()
				if e == nil {
					return
				}
				if e == http.ErrAbortHandler {
					panic(e)
				}

				err, ok := e.(error)
				if !ok {
					err = errors.New(fmt.Sprint(e))
				}

				buf := make([]byte, 2048)
				buf = buf[:runtime.Stack(buf, false)]

				logger.Error().Err(err).Str("path", r.URL.Path).Bytes("stack", buf).Msg("panic recovered")
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// CORS allows cross origin reads from the given origins. With no origins
// the handler is returned unchanged.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	if len(allowedOrigins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead},
		AllowedHeaders: []string{"Range", "If-Modified-Since", "If-None-Match"},
		ExposedHeaders: []string{"Content-Length", "Content-Range", "Accept-Ranges"},
	})
	return c.Handler
}
