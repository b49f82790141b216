package http

import "github.com/vadimbarashkov/shorturl/internal/entity"

// shortenRequest is the body of a shorten request, sent either as JSON or as
// an url-encoded form.
type shortenRequest struct {
	URL string `json:"url" form:"url"`
}

// shortenResponse is returned for a created or previously stored URL.
type shortenResponse struct {
	OriginalURL string `json:"original_url"`
	ShortURL    int64  `json:"short_url"`
}

func toShortenResponse(url *entity.URL) shortenResponse {
	return shortenResponse{
		OriginalURL: url.OriginalURL,
		ShortURL:    url.ShortCode,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

var (
	invalidURLResponse = errorResponse{
		Error: "Invalid URL",
	}

	urlNotFoundResponse = errorResponse{
		Error: "No URL found for the given short URL",
	}

	lookupTimeoutResponse = errorResponse{
		Error: "DNS lookup timed out",
	}

	serverErrorResponse = errorResponse{
		Error: "Server error",
	}
)
