// Package http provides the HTTP delivery layer of the URL shortener: the
// landing page and static assets, the shorten endpoint and the short code
// redirect.
package http

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/vadimbarashkov/shorturl/pkg/middleware/recoverer"

	httpSwagger "github.com/swaggo/http-swagger"
)

// StaticPaths locates the files served next to the API.
type StaticPaths struct {
	ViewsDir  string // ViewsDir holds index.html, served at /.
	PublicDir string // PublicDir is served under /public/.
	DocsFile  string // DocsFile is the OpenAPI document rendered at /swagger/.
}

// NewRouter initializes and returns a new Chi router configured with middleware and routes for the URL shortener.
func NewRouter(logger *httplog.Logger, urlUseCase urlUseCase, static StaticPaths) *chi.Mux {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"POST", "GET", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(recoverer.New(serverErrorResponse))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, filepath.Join(static.ViewsDir, "index.html"))
	})

	r.Handle("/public/*", http.StripPrefix("/public/", noDirListing(http.FileServer(http.Dir(static.PublicDir)))))

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/swagger.yml"),
	))

	r.Get("/docs/swagger.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, static.DocsFile)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", handlePing)

		r.Route("/shorturl", func(r chi.Router) {
			h := newURLHandler(urlUseCase)

			r.Post("/", h.shortenURL)
			r.Get("/{shortURL}", h.redirect)
		})
	})

	return r
}

// noDirListing answers directory requests with 404 instead of an index page.
func noDirListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}

		next.ServeHTTP(w, r)
	})
}
