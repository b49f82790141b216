// Package recoverer turns handler panics into a JSON error response.
package recoverer

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
)

// New returns middleware that recovers from panics, records the panic on the
// request log entry and answers with status 500 and body rendered as JSON.
// http.ErrAbortHandler is re-raised so the server can abort the connection.
func New(body any) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}

				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}

				httplog.LogEntrySetField(r.Context(), "panic", slog.StringValue(fmt.Sprint(rec)))
				httplog.LogEntrySetField(r.Context(), "stack", slog.StringValue(string(debug.Stack())))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, body)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
