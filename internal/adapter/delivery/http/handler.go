package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/vadimbarashkov/shorturl/internal/entity"
)

func handlePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "pong")
}

type urlUseCase interface {
	ShortenURL(ctx context.Context, originalURL string) (*entity.URL, error)
	ResolveShortCode(ctx context.Context, rawShortCode string) (*entity.URL, error)
}

type urlHandler struct {
	useCase urlUseCase
}

func newURLHandler(useCase urlUseCase) *urlHandler {
	return &urlHandler{useCase: useCase}
}

// shortenURL answers validation failures with 200 and an error body; only
// unexpected failures change the status code.
func (h *urlHandler) shortenURL(w http.ResponseWriter, r *http.Request) {
	var req shortenRequest

	if err := render.Decode(r, &req); err != nil {
		httplog.LogEntrySetField(r.Context(), "decode_err", slog.StringValue(err.Error()))

		render.Status(r, http.StatusOK)
		render.JSON(w, r, invalidURLResponse)
		return
	}

	url, err := h.useCase.ShortenURL(r.Context(), req.URL)
	if err != nil {
		switch {
		case errors.Is(err, entity.ErrInvalidURL):
			render.Status(r, http.StatusOK)
			render.JSON(w, r, invalidURLResponse)
		case errors.Is(err, entity.ErrLookupTimeout):
			httplog.LogEntrySetField(r.Context(), "err", slog.AnyValue(err))

			render.Status(r, http.StatusGatewayTimeout)
			render.JSON(w, r, lookupTimeoutResponse)
		default:
			httplog.LogEntrySetField(r.Context(), "err", slog.AnyValue(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, serverErrorResponse)
		}
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toShortenResponse(url))
}

func (h *urlHandler) redirect(w http.ResponseWriter, r *http.Request) {
	shortCode := chi.URLParam(r, "shortURL")

	url, err := h.useCase.ResolveShortCode(r.Context(), shortCode)
	if err != nil {
		if errors.Is(err, entity.ErrURLNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, urlNotFoundResponse)
			return
		}

		httplog.LogEntrySetField(r.Context(), "err", slog.AnyValue(err))

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, serverErrorResponse)
		return
	}

	http.Redirect(w, r, url.OriginalURL, http.StatusFound)
}
