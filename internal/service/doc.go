// Package service contains the application-specific use cases and business
// logic. It orchestrates interactions between domain objects and repositories
// (defined in internal/store) to fulfill application features.
//
// The task service enforces the task lifecycle state machine across its two
// collaborators: the durable task store and the queue gateway. Domain errors
// (not found, not cancellable) are surfaced as sentinel errors for the API
// layer to translate; infrastructure errors are wrapped with operation
// context.
package service
