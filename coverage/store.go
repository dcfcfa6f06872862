package coverage

import "context"

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks -source=store.go SessionStore

// SessionStore persists Session snapshots. SaveSession replaces the rental's
// bonds and payment periods atomically.
type SessionStore interface {
	SaveSession(ctx context.Context, s *Session) error

	// LoadSession returns ErrRentalNotFound for an unknown id.
	LoadSession(ctx context.Context, id RentalID) (*Session, error)

	ListRentals(ctx context.Context) ([]RentalPeriod, error)
}
