// Package worker implements the background processing side of the task
// lifecycle: consuming queued task messages, running the work function,
// and recording the resulting state transitions in the store.
package worker
