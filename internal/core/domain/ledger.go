package domain

import "time"

// LedgerState грубое состояние задачи в dedup ledger
type LedgerState string

const (
	LedgerQueued     LedgerState = "queued"
	LedgerProcessing LedgerState = "processing"
	LedgerCompleted  LedgerState = "completed"
	LedgerFailed     LedgerState = "failed"
)

// IsTerminal completed/failed хранятся с TTL и не блокируют повторную отправку
func (s LedgerState) IsTerminal() bool {
	return s == LedgerCompleted || s == LedgerFailed
}

// InFlight queued/processing: повторная отправка того же файла считается дубликатом
func (s LedgerState) InFlight() bool {
	return s == LedgerQueued || s == LedgerProcessing
}

// PublicStatus статус, который видит клиент
type PublicStatus string

const (
	StatusWaiting   PublicStatus = "waiting"
	StatusActive    PublicStatus = "active"
	StatusCompleted PublicStatus = "completed"
	StatusFailed    PublicStatus = "failed"
	StatusNotFound  PublicStatus = "not_found"
)

// Public отображение состояния ledger на клиентский статус
func (s LedgerState) Public() PublicStatus {
	switch s {
	case LedgerQueued:
		return StatusWaiting
	case LedgerProcessing:
		return StatusActive
	case LedgerCompleted:
		return StatusCompleted
	case LedgerFailed:
		return StatusFailed
	default:
		return StatusNotFound
	}
}

// Public отображение статуса истории на клиентский статус
func (s JobStatus) Public() PublicStatus {
	switch s {
	case JobStatusQueued:
		return StatusWaiting
	case JobStatusRunning:
		return StatusActive
	case JobStatusCompleted:
		return StatusCompleted
	case JobStatusFailed:
		return StatusFailed
	default:
		return StatusNotFound
	}
}

// LedgerEntry запись ledger по jobId
type LedgerEntry struct {
	JobID     string
	State     LedgerState
	Job       *ImportJob
	Processed int
	Result    *ImportResult
	Error     string
	UpdatedAt time.Time
}

// Progress процент обработанных строк
func (e LedgerEntry) Progress() int {
	switch e.State {
	case LedgerCompleted:
		return 100
	case LedgerProcessing:
		if e.Job == nil || e.Job.TotalRows <= 0 {
			return 0
		}
		p := e.Processed * 100 / e.Job.TotalRows
		if p > 99 {
			p = 99
		}
		return p
	default:
		return 0
	}
}

// ImportStatusView то, что отдает status endpoint
type ImportStatusView struct {
	JobID    string
	Status   PublicStatus
	Progress int
	Job      *ImportJob
	Result   *ImportResult
	Error    string
}

// QueueStatsView сводка по очереди импорта
type QueueStatsView struct {
	Waiting      int `json:"waiting"`
	Active       int `json:"active"`
	Completed    int `json:"completed"`
	Failed       int `json:"failed"`
	DeadLettered int `json:"deadLettered"`
}

// RetrySummary результат повторной постановки упавших задач
type RetrySummary struct {
	Found    int `json:"jobsFound"`
	Requeued int `json:"requeued"`
}
