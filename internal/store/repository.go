package store

import "context"

// Store groups the entity stores of one unit of work.
// Stores obtained from the same Store share its transaction, if any.
type Store interface {
	Cards() CardStore
	TimeEntries() TimeEntryStore
	Skills() SkillStore
	Projects() ProjectStore
	Awards() AwardStore
}

// UnitFn is a function that executes within a unit of work.
// The Store passed to it must not be used after the function returns.
type UnitFn func(ctx context.Context, s Store) error

// Repository is the persistence boundary of the tracker.
//
// InTx runs fn atomically: if fn returns an error, none of its writes are
// applied. ReadTx runs fn against a consistent snapshot; implementations may
// reject writes inside it.
type Repository interface {
	Store

	InTx(ctx context.Context, fn UnitFn) error
	ReadTx(ctx context.Context, fn UnitFn) error
}
