package usecase

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/vadimbarashkov/shorturl/internal/adapter/repository/memory"
	"github.com/vadimbarashkov/shorturl/internal/entity"
	"github.com/vadimbarashkov/shorturl/internal/validation"
)

type MockURLValidator struct {
	mock.Mock
}

func (v *MockURLValidator) Validate(ctx context.Context, candidate string) (string, error) {
	args := v.Called(ctx, candidate)
	return args.String(0), args.Error(1)
}

type MockURLRepository struct {
	mock.Mock
}

func (r *MockURLRepository) FindByURL(ctx context.Context, originalURL string) (*entity.URL, error) {
	args := r.Called(ctx, originalURL)
	url, _ := args.Get(0).(*entity.URL)
	return url, args.Error(1)
}

func (r *MockURLRepository) FindByShortCode(ctx context.Context, shortCode int64) (*entity.URL, error) {
	args := r.Called(ctx, shortCode)
	url, _ := args.Get(0).(*entity.URL)
	return url, args.Error(1)
}

func (r *MockURLRepository) Count(ctx context.Context) (int64, error) {
	args := r.Called(ctx)
	n, _ := args.Get(0).(int64)
	return n, args.Error(1)
}

func (r *MockURLRepository) NextShortCode(ctx context.Context) (int64, error) {
	args := r.Called(ctx)
	n, _ := args.Get(0).(int64)
	return n, args.Error(1)
}

func (r *MockURLRepository) Save(ctx context.Context, originalURL string, shortCode int64) (*entity.URL, error) {
	args := r.Called(ctx, originalURL, shortCode)
	url, _ := args.Get(0).(*entity.URL)
	return url, args.Error(1)
}

type URLUseCaseTestSuite struct {
	suite.Suite
	errUnknown    error
	validatorMock *MockURLValidator
	urlRepoMock   *MockURLRepository
	uc            *URLUseCase
}

func (suite *URLUseCaseTestSuite) SetupSuite() {
	suite.errUnknown = errors.New("unknown error")
}

func (suite *URLUseCaseTestSuite) SetupSubTest() {
	suite.validatorMock = new(MockURLValidator)
	suite.urlRepoMock = new(MockURLRepository)

	uc, err := New(suite.validatorMock, suite.urlRepoMock, StrategyCount)
	suite.Require().NoError(err)
	suite.uc = uc
}

func (suite *URLUseCaseTestSuite) TearDownSubTest() {
	suite.validatorMock.AssertExpectations(suite.T())
	suite.urlRepoMock.AssertExpectations(suite.T())
}

func (suite *URLUseCaseTestSuite) TestShortenURL() {
	const rawURL = "https://example.com"
	ctx := context.Background()

	suite.Run("invalid url", func() {
		suite.validatorMock.
			On("Validate", ctx, "not a url").
			Once().
			Return("", entity.ErrInvalidURL)

		url, err := suite.uc.ShortenURL(ctx, "not a url")

		suite.Error(err)
		suite.ErrorIs(err, entity.ErrInvalidURL)
		suite.Nil(url)
	})

	suite.Run("lookup timeout", func() {
		suite.validatorMock.
			On("Validate", ctx, rawURL).
			Once().
			Return("", entity.ErrLookupTimeout)

		url, err := suite.uc.ShortenURL(ctx, rawURL)

		suite.Error(err)
		suite.ErrorIs(err, entity.ErrLookupTimeout)
		suite.Nil(url)
	})

	suite.Run("existing url", func() {
		suite.validatorMock.
			On("Validate", ctx, rawURL).
			Once().
			Return("example.com", nil)
		suite.urlRepoMock.
			On("FindByURL", ctx, rawURL).
			Once().
			Return(&entity.URL{OriginalURL: rawURL, ShortCode: 4}, nil)

		url, err := suite.uc.ShortenURL(ctx, rawURL)

		suite.NoError(err)
		suite.Equal(int64(4), url.ShortCode)
		suite.Equal(rawURL, url.OriginalURL)
	})

	suite.Run("find error", func() {
		suite.validatorMock.
			On("Validate", ctx, rawURL).
			Once().
			Return("example.com", nil)
		suite.urlRepoMock.
			On("FindByURL", ctx, rawURL).
			Once().
			Return(nil, suite.errUnknown)

		url, err := suite.uc.ShortenURL(ctx, rawURL)

		suite.Error(err)
		suite.ErrorIs(err, suite.errUnknown)
		suite.Nil(url)
	})

	suite.Run("count error", func() {
		suite.validatorMock.
			On("Validate", ctx, rawURL).
			Once().
			Return("example.com", nil)
		suite.urlRepoMock.
			On("FindByURL", ctx, rawURL).
			Once().
			Return(nil, entity.ErrURLNotFound)
		suite.urlRepoMock.
			On("Count", ctx).
			Once().
			Return(int64(0), suite.errUnknown)

		url, err := suite.uc.ShortenURL(ctx, rawURL)

		suite.Error(err)
		suite.ErrorIs(err, suite.errUnknown)
		suite.Nil(url)
	})

	suite.Run("save error", func() {
		suite.validatorMock.
			On("Validate", ctx, rawURL).
			Once().
			Return("example.com", nil)
		suite.urlRepoMock.
			On("FindByURL", ctx, rawURL).
			Once().
			Return(nil, entity.ErrURLNotFound)
		suite.urlRepoMock.
			On("Count", ctx).
			Once().
			Return(int64(2), nil)
		suite.urlRepoMock.
			On("Save", ctx, rawURL, int64(3)).
			Once().
			Return(nil, suite.errUnknown)

		url, err := suite.uc.ShortenURL(ctx, rawURL)

		suite.Error(err)
		suite.ErrorIs(err, suite.errUnknown)
		suite.Nil(url)
	})

	suite.Run("success", func() {
		suite.validatorMock.
			On("Validate", ctx, rawURL).
			Once().
			Return("example.com", nil)
		suite.urlRepoMock.
			On("FindByURL", ctx, rawURL).
			Once().
			Return(nil, entity.ErrURLNotFound)
		suite.urlRepoMock.
			On("Count", ctx).
			Once().
			Return(int64(2), nil)
		suite.urlRepoMock.
			On("Save", ctx, rawURL, int64(3)).
			Once().
			Return(&entity.URL{OriginalURL: rawURL, ShortCode: 3}, nil)

		url, err := suite.uc.ShortenURL(ctx, rawURL)

		suite.NoError(err)
		suite.Equal(int64(3), url.ShortCode)
		suite.Equal(rawURL, url.OriginalURL)
	})

	suite.Run("sequence strategy", func() {
		suite.uc.strategy = StrategySequence

		suite.validatorMock.
			On("Validate", ctx, rawURL).
			Once().
			Return("example.com", nil)
		suite.urlRepoMock.
			On("FindByURL", ctx, rawURL).
			Once().
			Return(nil, entity.ErrURLNotFound)
		suite.urlRepoMock.
			On("NextShortCode", ctx).
			Once().
			Return(int64(11), nil)
		suite.urlRepoMock.
			On("Save", ctx, rawURL, int64(11)).
			Once().
			Return(&entity.URL{OriginalURL: rawURL, ShortCode: 11}, nil)

		url, err := suite.uc.ShortenURL(ctx, rawURL)

		suite.NoError(err)
		suite.Equal(int64(11), url.ShortCode)
	})
}

func (suite *URLUseCaseTestSuite) TestResolveShortCode() {
	ctx := context.Background()

	suite.Run("non-integer short code", func() {
		url, err := suite.uc.ResolveShortCode(ctx, "abc")

		suite.Error(err)
		suite.ErrorIs(err, entity.ErrURLNotFound)
		suite.Nil(url)
	})

	suite.Run("url not found", func() {
		suite.urlRepoMock.
			On("FindByShortCode", ctx, int64(42)).
			Once().
			Return(nil, entity.ErrURLNotFound)

		url, err := suite.uc.ResolveShortCode(ctx, "42")

		suite.Error(err)
		suite.ErrorIs(err, entity.ErrURLNotFound)
		suite.Nil(url)
	})

	suite.Run("unknown error", func() {
		suite.urlRepoMock.
			On("FindByShortCode", ctx, int64(1)).
			Once().
			Return(nil, suite.errUnknown)

		url, err := suite.uc.ResolveShortCode(ctx, "1")

		suite.Error(err)
		suite.ErrorIs(err, suite.errUnknown)
		suite.Nil(url)
	})

	suite.Run("success", func() {
		suite.urlRepoMock.
			On("FindByShortCode", ctx, int64(1)).
			Once().
			Return(&entity.URL{OriginalURL: "https://example.com", ShortCode: 1}, nil)

		url, err := suite.uc.ResolveShortCode(ctx, "1")

		suite.NoError(err)
		suite.Equal("https://example.com", url.OriginalURL)
	})
}

func TestURLUseCase(t *testing.T) {
	suite.Run(t, new(URLUseCaseTestSuite))
}

func TestNew(t *testing.T) {
	t.Run("default strategy", func(t *testing.T) {
		uc, err := New(nil, nil, "")

		assert.NoError(t, err)
		assert.Equal(t, StrategyCount, uc.strategy)
	})

	t.Run("unknown strategy", func(t *testing.T) {
		uc, err := New(nil, nil, "random")

		assert.ErrorIs(t, err, ErrUnknownStrategy)
		assert.Nil(t, uc)
	})
}

func TestParseShortCode(t *testing.T) {
	tests := []struct {
		in     string
		want   int64
		wantOK bool
	}{
		{in: "1", want: 1, wantOK: true},
		{in: "42", want: 42, wantOK: true},
		{in: "  7", want: 7, wantOK: true},
		{in: "+3", want: 3, wantOK: true},
		{in: "-3", want: -3, wantOK: true},
		{in: "12abc", want: 12, wantOK: true},
		{in: "007", want: 7, wantOK: true},
		{in: "", wantOK: false},
		{in: "abc", wantOK: false},
		{in: "-", wantOK: false},
		{in: "1e3", want: 1, wantOK: true},
		{in: "99999999999999999999", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.in), func(t *testing.T) {
			got, ok := parseShortCode(tt.in)

			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

// fakeResolver resolves every host except the reserved .invalid TLD.
type fakeResolver struct{}

func (fakeResolver) LookupHost(_ context.Context, host string) ([]string, error) {
	if strings.HasSuffix(host, ".invalid") {
		return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}
	return []string{"192.0.2.1"}, nil
}

func newRegistry(t *testing.T, strategy string) *URLUseCase {
	t.Helper()

	uc, err := New(validation.New(fakeResolver{}), memory.NewURLRepository(), strategy)
	require.NoError(t, err)

	return uc
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()

	t.Run("shorten is idempotent", func(t *testing.T) {
		uc := newRegistry(t, StrategyCount)

		first, err := uc.ShortenURL(ctx, "https://www.example.com")
		require.NoError(t, err)
		second, err := uc.ShortenURL(ctx, "https://www.example.com")
		require.NoError(t, err)

		assert.Equal(t, int64(1), first.ShortCode)
		assert.Equal(t, first.ShortCode, second.ShortCode)
	})

	t.Run("unresolvable host", func(t *testing.T) {
		uc := newRegistry(t, StrategyCount)

		url, err := uc.ShortenURL(ctx, "http://this-host-does-not-exist.invalid")

		assert.ErrorIs(t, err, entity.ErrInvalidURL)
		assert.Nil(t, url)

		_, err = uc.ResolveShortCode(ctx, "1")
		assert.ErrorIs(t, err, entity.ErrURLNotFound)
	})

	t.Run("malformed url", func(t *testing.T) {
		uc := newRegistry(t, StrategyCount)

		url, err := uc.ShortenURL(ctx, "not a url")

		assert.ErrorIs(t, err, entity.ErrInvalidURL)
		assert.Nil(t, url)
	})

	t.Run("unassigned code", func(t *testing.T) {
		uc := newRegistry(t, StrategyCount)

		url, err := uc.ResolveShortCode(ctx, "5")

		assert.ErrorIs(t, err, entity.ErrURLNotFound)
		assert.Nil(t, url)
	})

	for _, strategy := range []string{StrategyCount, StrategySequence} {
		t.Run("codes follow creation order/"+strategy, func(t *testing.T) {
			uc := newRegistry(t, strategy)
			urls := []string{"https://a.example.com", "https://b.example.com", "https://c.example.com"}

			for i, u := range urls {
				url, err := uc.ShortenURL(ctx, u)
				require.NoError(t, err)
				assert.Equal(t, int64(i+1), url.ShortCode)
			}

			for i, u := range urls {
				url, err := uc.ResolveShortCode(ctx, fmt.Sprint(i+1))
				require.NoError(t, err)
				assert.Equal(t, u, url.OriginalURL)
			}
		})
	}

	t.Run("sequence strategy assigns unique codes concurrently", func(t *testing.T) {
		uc := newRegistry(t, StrategySequence)

		const n = 50
		codes := make(chan int64, n)

		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()

				url, err := uc.ShortenURL(ctx, fmt.Sprintf("https://%d.example.com", i))
				if assert.NoError(t, err) {
					codes <- url.ShortCode
				}
			}(i)
		}
		wg.Wait()
		close(codes)

		seen := make(map[int64]bool, n)
		for code := range codes {
			assert.False(t, seen[code], "duplicate short code %d", code)
			seen[code] = true
		}
		assert.Len(t, seen, n)
	})
}
