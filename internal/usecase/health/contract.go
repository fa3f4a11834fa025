package health

import "context"

// Pinger checks reachability of a store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker checks availability of a backend.
type Checker interface {
	HealthCheck(ctx context.Context) error
}
