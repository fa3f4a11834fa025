package redis

import "github.com/redis/rueidis"

// NewStoreForTest creates a Store backed by the given client (for tests with mock.Client).
func NewStoreForTest(c rueidis.Client, addrs ...string) *Store {
	return &Store{client: c, addrs: addrs}
}
