package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/shortlink/internal/models"
	"github.com/atinyakov/shortlink/internal/shortcode"
	"github.com/atinyakov/shortlink/internal/storage"
)

const (
	maxAliasLen = 64

	// generateAttempts bounds retries when a derived code is already held by
	// a custom alias.
	generateAttempts = 3

	finalizeTimeout = 5 * time.Second

	// maxExpiryMinutes keeps the expiry offset within time.Duration.
	maxExpiryMinutes = int64(math.MaxInt64 / int64(time.Minute))
)

// URLShortener creates links and returns their fully-qualified short URLs.
type URLShortener struct {
	storage  Storage
	cache    Cache
	guard    URLValidator
	logger   *zap.Logger
	baseURL  string
	cacheTTL time.Duration
	now      func() time.Time
}

func NewURLShortener(store Storage, cache Cache, guard URLValidator, logger *zap.Logger, baseURL string, ttl time.Duration) *URLShortener {
	return &URLShortener{
		storage:  store,
		cache:    cache,
		guard:    guard,
		logger:   logger,
		baseURL:  strings.TrimRight(baseURL, "/"),
		cacheTTL: ttl,
		now:      time.Now,
	}
}

// Shorten validates the target, persists the link and warms the cache.
//
// Without an alias the link is created in two phases: the row is inserted to
// obtain its id, then the code derived from that id is written back. A row
// left without a code by a failure between the phases is an orphan that the
// sweeper finalizes later.
func (s *URLShortener) Shorten(ctx context.Context, req models.ShortenRequest) (string, error) {
	target, err := s.guard.Validate(ctx, req.URL)
	if err != nil {
		return "", err
	}
	longURL := target.String()

	alias := ""
	if req.CustomAlias != nil {
		alias = *req.CustomAlias
	}
	if alias != "" && !validAlias(alias) {
		return "", ErrInvalidAlias
	}

	var expiresAt *time.Time
	if req.ExpiryMinutes != nil {
		if *req.ExpiryMinutes <= 0 || int64(*req.ExpiryMinutes) > maxExpiryMinutes {
			return "", ErrInvalidExpiry
		}
		t := s.now().UTC().Add(time.Duration(*req.ExpiryMinutes) * time.Minute)
		expiresAt = &t
	}

	link := storage.Link{
		LongURL:   longURL,
		ExpiresAt: expiresAt,
		IsActive:  true,
	}

	var code string
	if alias != "" {
		code, err = s.createWithAlias(ctx, link, alias)
	} else {
		code, err = s.createGenerated(ctx, link)
	}
	if err != nil {
		return "", err
	}

	s.warmCache(ctx, code, longURL, expiresAt)

	return s.baseURL + "/" + code, nil
}

func (s *URLShortener) createWithAlias(ctx context.Context, link storage.Link, alias string) (string, error) {
	// Advisory only: the store's unique constraint settles races.
	_, err := s.storage.GetByCode(ctx, alias, false)
	switch {
	case err == nil:
		return "", storage.ErrAliasTaken
	case !errors.Is(err, storage.ErrNotFound):
		return "", fmt.Errorf("check alias: %w", err)
	}

	link.ShortCode = alias
	if _, err := s.storage.Create(ctx, link); err != nil {
		return "", err
	}

	return alias, nil
}

func (s *URLShortener) createGenerated(ctx context.Context, link storage.Link) (string, error) {
	for attempt := 1; attempt <= generateAttempts; attempt++ {
		created, err := s.storage.Create(ctx, link)
		if err != nil {
			return "", fmt.Errorf("create link: %w", err)
		}

		code, err := s.finalize(ctx, *created)
		if err == nil {
			return code, nil
		}
		if !errors.Is(err, storage.ErrAliasTaken) {
			return "", err
		}

		s.logger.Warn("generated code held by alias, retrying",
			zap.Int64("id", created.ID),
			zap.Int("attempt", attempt),
		)
	}

	return "", fmt.Errorf("generate code: %d attempts collided with aliases", generateAttempts)
}

// finalize assigns the id-derived code. It runs detached from the caller's
// cancellation so a disconnect after phase one does not leave an orphan.
// On collision, or when the code names a fixed route, the row is deactivated
// so it never resurfaces.
func (s *URLShortener) finalize(ctx context.Context, link storage.Link) (string, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()

	var err error
	link.ShortCode = shortcode.FromID(link.ID)
	if shortcode.Reserved(link.ShortCode) {
		err = storage.ErrAliasTaken
	} else {
		err = s.storage.Update(ctx, link)
		if err == nil {
			return link.ShortCode, nil
		}
		if !errors.Is(err, storage.ErrAliasTaken) {
			return "", fmt.Errorf("assign code: %w", err)
		}
	}

	link.ShortCode = ""
	link.IsActive = false
	if derr := s.storage.Update(ctx, link); derr != nil {
		s.logger.Error("failed to deactivate colliding link", zap.Int64("id", link.ID), zap.Error(derr))
	}

	return "", err
}

func (s *URLShortener) warmCache(ctx context.Context, code, url string, expiresAt *time.Time) {
	ttl := cacheTTL(s.cacheTTL, expiresAt, s.now())
	if ttl <= 0 {
		return
	}
	if err := s.cache.Set(ctx, code, url, ttl); err != nil {
		s.logger.Warn("cache set failed", zap.String("code", code), zap.Error(err))
	}
}

func validAlias(alias string) bool {
	if len(alias) > maxAliasLen || shortcode.Reserved(alias) {
		return false
	}
	for _, c := range alias {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}
