package domain

import "context"

// AccessControl answers and adjusts cross-domain readability: whether code
// defined in one domain may call back into another domain's support modules.
// Implementations are selected once at engine construction. All operations
// are idempotent.
type AccessControl interface {
	// CanRead reports whether modules defined in from can resolve the
	// support modules of to.
	CanRead(from, to Domain) (bool, error)

	// IsOpen reports whether the given namespace of from has been explicitly
	// opened to to.
	IsOpen(from Domain, namespace string, to Domain) (bool, error)

	// GrantRead establishes a read edge from from to to.
	GrantRead(ctx context.Context, from, to Domain) error
}

// NoopAccessControl is for hosts without any notion of namespace access
// boundaries: everything is readable and open, and grants succeed trivially.
type NoopAccessControl struct{}

var _ AccessControl = NoopAccessControl{}

func (NoopAccessControl) CanRead(from, to Domain) (bool, error) {
	return true, nil
}

func (NoopAccessControl) IsOpen(from Domain, namespace string, to Domain) (bool, error) {
	return true, nil
}

func (NoopAccessControl) GrantRead(ctx context.Context, from, to Domain) error {
	return nil
}
