// Package models defines the request and response data structures used
// for communication between clients and the link shortener.
package models

import "time"

// ShortenRequest represents a request to shorten a URL.
type ShortenRequest struct {
	// URL is the original URL to be shortened.
	URL string `json:"url"`

	// CustomAlias, when set, is used as the short code instead of a generated one.
	CustomAlias *string `json:"custom_alias,omitempty"`

	// ExpiryMinutes, when set, makes the link stop resolving after that many minutes.
	ExpiryMinutes *int `json:"expiry_minutes,omitempty"`
}

// ShortenResponse represents the response containing the shortened URL.
type ShortenResponse struct {
	// ShortURL is the fully-qualified short URL.
	ShortURL string `json:"short_url"`
}

// LinkInfo is the authoritative metadata of a link.
type LinkInfo struct {
	ShortCode string     `json:"short_code"`
	LongURL   string     `json:"long_url"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at"`
	IsActive  bool       `json:"is_active"`

	// ClickCount is the durable count plus clicks still pending aggregation.
	ClickCount int64 `json:"click_count"`
}

// Message is a plain informational response.
type Message struct {
	Message string `json:"message"`
}
