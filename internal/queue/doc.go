// Package queue integrates with the message broker used to hand tasks
// from the API process to worker processes. It provides a best-effort
// publisher for "task ready" notices and the shared message format the
// worker consumes.
package queue
