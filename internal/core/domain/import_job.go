package domain

import (
	"io"
	"strings"
	"time"
)

// ImportJob единица работы, которую intake передает воркеру. После постановки в очередь не меняется.
type ImportJob struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenantId"`
	UserID     string    `json:"userId"`
	Filename   string    `json:"filename"`
	FileKey    string    `json:"fileKey"`
	TotalRows  int       `json:"totalRows"`
	EnqueuedAt time.Time `json:"timestamp"`
}

// Validate минимальная проверка перед обработкой
func (j ImportJob) Validate() error {
	if strings.TrimSpace(j.ID) == "" || strings.TrimSpace(j.TenantID) == "" ||
		strings.TrimSpace(j.UserID) == "" || strings.TrimSpace(j.FileKey) == "" {
		return ErrInvalidJob
	}
	return nil
}

// JobStatus статус записи в истории импортов
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// ImportJobRecord строка таблицы import_jobs
type ImportJobRecord struct {
	Job        ImportJob
	Status     JobStatus
	Result     *ImportResult
	LastError  string
	StartedAt  *time.Time
	FinishedAt *time.Time
}

// JobCounts количество задач по статусам истории
type JobCounts struct {
	Queued    int
	Running   int
	Completed int
	Failed    int
}

// Upload загруженный пользователем файл
type Upload struct {
	Name        string
	Size        int64
	ContentType string
	Content     io.ReadSeekCloser // читается дважды: подсчет строк и сохранение
}

// IsCSV: content type содержит "csv" или имя оканчивается на .csv
func (u Upload) IsCSV() bool {
	return strings.Contains(strings.ToLower(u.ContentType), "csv") ||
		strings.HasSuffix(strings.ToLower(u.Name), ".csv")
}

// SubmissionStatus результат приема файла
type SubmissionStatus string

const (
	SubmissionAccepted  SubmissionStatus = "accepted"
	SubmissionDuplicate SubmissionStatus = "duplicate"
)

// Submission ответ intake
type Submission struct {
	JobID         string
	Status        SubmissionStatus
	EstimatedRows int
}
