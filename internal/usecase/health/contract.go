package health

import "context"

// StoragePinger checks storage availability.
type StoragePinger interface {
	Ping(ctx context.Context) error
}

// Checker is any component that can report its own health.
type Checker interface {
	HealthCheck(ctx context.Context) error
}
