package domain

// WorkerState этапы обработки одной задачи воркером
type WorkerState int

const (
	WorkerReceived WorkerState = iota
	WorkerStreaming
	WorkerBatching
	WorkerCompleted
	WorkerAborted
)

func (s WorkerState) String() string {
	switch s {
	case WorkerReceived:
		return "received"
	case WorkerStreaming:
		return "streaming"
	case WorkerBatching:
		return "batching"
	case WorkerCompleted:
		return "completed"
	case WorkerAborted:
		return "aborted"
	default:
		return "unknown"
	}
}
