// Package api handles the HTTP surface of the tracker: request decoding and
// validation, mapping of domain errors to status codes, and JSON responses.
// Handlers are thin adapters over the service package; routing lives in
// cmd/server.
package api
