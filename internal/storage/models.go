package storage

import "time"

// Link is one durable short link row.
//
// ShortCode is empty between the two phases of an auto-generated create.
// ClickCount only ever grows through BatchIncrementClickCounts.
type Link struct {
	ID         int64      `json:"id"`
	ShortCode  string     `json:"short_code"`
	LongURL    string     `json:"long_url"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	IsActive   bool       `json:"is_active"`
	ClickCount int64      `json:"click_count"`
}

// Expired reports whether the link has an expiry that is not after now.
func (l *Link) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && !now.Before(*l.ExpiresAt)
}
