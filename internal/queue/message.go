package queue

// RetryCountHeader is the transport-level header carrying the redelivery
// counter for a task message. An absent header means zero prior attempts.
const RetryCountHeader = "x-retry-count"

// TaskMessage is the JSON body of a queued task notice. It identifies the
// task by ID only; the worker re-reads authoritative state from the store.
type TaskMessage struct {
	TaskID string `json:"task_id"`
}
