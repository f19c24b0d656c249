// Package cache holds Resolution Cache implementations mapping short codes to
// long URLs with a per-entry TTL.
package cache

import "errors"

// ErrMiss is returned by Get when the code is not cached.
var ErrMiss = errors.New("cache miss")

const keyPrefix = "link:"

func key(code string) string {
	return keyPrefix + code
}
