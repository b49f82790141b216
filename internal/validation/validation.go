// Package validation checks that a submitted URL is well formed and that its
// hostname resolves via DNS before the URL is handed to the registry.
package validation

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/shorturl/internal/entity"
)

type hostResolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// Option configures a Validator.
type Option func(*Validator)

// WithLookupTimeout bounds every DNS lookup. A zero duration disables the bound.
func WithLookupTimeout(d time.Duration) Option {
	return func(v *Validator) {
		v.lookupTimeout = d
	}
}

// Validator verifies that candidate URLs are structurally valid and resolvable.
type Validator struct {
	resolver      hostResolver
	validate      *validator.Validate
	lookupTimeout time.Duration
}

// New creates a Validator that resolves hostnames with the given resolver.
// A nil resolver falls back to net.DefaultResolver.
func New(resolver hostResolver, opts ...Option) *Validator {
	if resolver == nil {
		resolver = net.DefaultResolver
	}

	v := &Validator{
		resolver: resolver,
		validate: validator.New(),
	}

	for _, opt := range opts {
		opt(v)
	}

	return v
}

// Validate returns the hostname of candidate when candidate parses as an absolute
// URL and the hostname resolves to at least one address. Malformed and unresolvable
// URLs both yield entity.ErrInvalidURL. A lookup abandoned because ctx is done
// returns the context error instead.
func (v *Validator) Validate(ctx context.Context, candidate string) (string, error) {
	const op = "validation.Validator.Validate"

	if err := v.validate.Var(candidate, "required,url"); err != nil {
		return "", fmt.Errorf("%s: %w", op, entity.ErrInvalidURL)
	}

	u, err := url.Parse(candidate)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, entity.ErrInvalidURL)
	}

	hostname := u.Hostname()
	if u.Scheme == "" || hostname == "" {
		return "", fmt.Errorf("%s: %w", op, entity.ErrInvalidURL)
	}

	lookupCtx := ctx
	if v.lookupTimeout > 0 {
		var cancel context.CancelFunc
		lookupCtx, cancel = context.WithTimeout(ctx, v.lookupTimeout)
		defer cancel()
	}

	addrs, err := v.resolver.LookupHost(lookupCtx, hostname)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("%s: lookup of %s aborted: %w", op, hostname, ctxErr)
		}

		if v.lookupTimeout > 0 && errors.Is(lookupCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%s: %s: %w", op, hostname, entity.ErrLookupTimeout)
		}

		return "", fmt.Errorf("%s: failed to resolve %s: %w", op, hostname, entity.ErrInvalidURL)
	}

	if len(addrs) == 0 {
		return "", fmt.Errorf("%s: no addresses for %s: %w", op, hostname, entity.ErrInvalidURL)
	}

	return hostname, nil
}
