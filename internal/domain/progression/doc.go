// Package progression converts completed work into skill experience and levels.
// All functions are pure; persistence is handled by the service layer.
package progression
