package cache

import "time"

// BytesCache is the minimal cache surface the API handlers need.
type BytesCache interface {
	GetBytes(key string) ([]byte, bool, error)
	SetBytes(key string, value []byte, ttl time.Duration) error
}
