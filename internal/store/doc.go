// Package store defines interfaces for data persistence operations.
// These interfaces abstract the underlying data storage mechanism from
// the tracker's core logic: the service layer depends only on Repository,
// and implementations live under internal/platform (postgres, memory).
package store
