// Package memory implements store.Repository in process memory.
//
// It enforces the same uniqueness and reference rules as the Postgres schema
// so services behave identically against either backend. Transactions work
// on a private copy of the state that replaces the shared state on success.
package memory
