// Package service provides link shortening and resolution.
package service

import (
	"context"

	"github.com/atinyakov/shortlink/internal/models"
)

type URLService struct {
	repository Storage
	shortener  *URLShortener
	resolver   *URLResolver
}

func NewURL(repo Storage, shortener *URLShortener, resolver *URLResolver) *URLService {
	return &URLService{
		repository: repo,
		shortener:  shortener,
		resolver:   resolver,
	}
}

func (s *URLService) PingContext(ctx context.Context) error {
	return s.repository.PingContext(ctx)
}

func (s *URLService) Shorten(ctx context.Context, req models.ShortenRequest) (string, error) {
	return s.shortener.Shorten(ctx, req)
}

func (s *URLService) Resolve(ctx context.Context, code string) (string, error) {
	return s.resolver.Resolve(ctx, code)
}

func (s *URLService) Info(ctx context.Context, code string) (*models.LinkInfo, error) {
	return s.resolver.Info(ctx, code)
}
