// Package domain contains the core business entities of the tracker: cards,
// the time entries recorded against them, skills and projects. Entities carry
// their own validation and lifecycle transitions; they never touch storage.
package domain
