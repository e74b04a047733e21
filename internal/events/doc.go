// Package events provides types and interfaces for an event-driven architecture.
//
// The tracker emits an Event after each committed card transition. Handlers
// such as the skill service react to them without the tracker knowing about
// skills:
// - Event: a card transition with the minutes it recorded
// - EventHandler: interface for components that can handle events
// - EventEmitter: interface for components that can emit events
package events
