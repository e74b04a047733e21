//go:build integration

// Package testdb provides PostgreSQL databases for integration tests.
//
// A test database comes from DATABASE_URL (or PROGRESSOR_TEST_DB_URL) when
// set, otherwise from a disposable postgres container started with
// testcontainers-go. Either way the embedded migrations are applied once per
// test binary. Tests isolate themselves by using fresh user IDs.
package testdb
