// Package usecase implements the URL registry: creating short codes for
// validated URLs and resolving short codes back to the URLs they were
// assigned to.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/vadimbarashkov/shorturl/internal/entity"
)

// Short code assignment strategies.
const (
	// StrategyCount assigns the number of stored URLs plus one. The
	// find, count and save calls are not transactional, so concurrent
	// creations of new URLs can be assigned the same code.
	StrategyCount = "count"
	// StrategySequence assigns codes from an atomic store sequence.
	StrategySequence = "sequence"
)

// ErrUnknownStrategy is returned by New for an unsupported short code strategy.
var ErrUnknownStrategy = errors.New("unknown short code strategy")

type urlValidator interface {
	Validate(ctx context.Context, candidate string) (string, error)
}

type urlRepository interface {
	FindByURL(ctx context.Context, originalURL string) (*entity.URL, error)
	FindByShortCode(ctx context.Context, shortCode int64) (*entity.URL, error)
	Count(ctx context.Context) (int64, error)
	NextShortCode(ctx context.Context) (int64, error)
	Save(ctx context.Context, originalURL string, shortCode int64) (*entity.URL, error)
}

// URLUseCase is the URL registry. It is the only component that touches the store.
type URLUseCase struct {
	validator urlValidator
	urlRepo   urlRepository
	strategy  string
}

// New creates a URLUseCase. An empty strategy selects StrategyCount.
func New(validator urlValidator, urlRepo urlRepository, strategy string) (*URLUseCase, error) {
	const op = "usecase.New"

	switch strategy {
	case "":
		strategy = StrategyCount
	case StrategyCount, StrategySequence:
	default:
		return nil, fmt.Errorf("%s: %q: %w", op, strategy, ErrUnknownStrategy)
	}

	return &URLUseCase{
		validator: validator,
		urlRepo:   urlRepo,
		strategy:  strategy,
	}, nil
}

// ShortenURL validates originalURL and returns its existing record, or stores it
// under a new short code when it has not been seen before.
func (uc *URLUseCase) ShortenURL(ctx context.Context, originalURL string) (*entity.URL, error) {
	const op = "usecase.URLUseCase.ShortenURL"

	if _, err := uc.validator.Validate(ctx, originalURL); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	url, err := uc.urlRepo.FindByURL(ctx, originalURL)
	if err == nil {
		return url, nil
	}
	if !errors.Is(err, entity.ErrURLNotFound) {
		return nil, fmt.Errorf("%s: failed to look up url: %w", op, err)
	}

	shortCode, err := uc.nextShortCode(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to assign short code: %w", op, err)
	}

	url, err = uc.urlRepo.Save(ctx, originalURL, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to save url: %w", op, err)
	}

	return url, nil
}

func (uc *URLUseCase) nextShortCode(ctx context.Context) (int64, error) {
	if uc.strategy == StrategySequence {
		return uc.urlRepo.NextShortCode(ctx)
	}

	n, err := uc.urlRepo.Count(ctx)
	if err != nil {
		return 0, err
	}

	return n + 1, nil
}

// ResolveShortCode returns the URL stored under the given short code. Identifiers
// that do not start with an integer are reported as entity.ErrURLNotFound.
func (uc *URLUseCase) ResolveShortCode(ctx context.Context, rawShortCode string) (*entity.URL, error) {
	const op = "usecase.URLUseCase.ResolveShortCode"

	shortCode, ok := parseShortCode(rawShortCode)
	if !ok {
		return nil, fmt.Errorf("%s: %q: %w", op, rawShortCode, entity.ErrURLNotFound)
	}

	url, err := uc.urlRepo.FindByShortCode(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to resolve short code: %w", op, err)
	}

	return url, nil
}

// parseShortCode reads a base-10 integer prefix the way lenient integer parsing
// does: leading whitespace and an optional sign are accepted and anything after
// the digits is ignored, so "12abc" is 12.
func parseShortCode(s string) (int64, bool) {
	s = strings.TrimLeft(s, " \t\n\v\f\r")

	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}

	start := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return 0, false
	}

	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0, false
	}

	return n, true
}
