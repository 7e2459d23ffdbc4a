package domain

import "fmt"

const (
	// MaxAccumulatedErrors сколько последних ошибок держим во время импорта
	MaxAccumulatedErrors = 1000
	// MaxReportedErrors сколько последних ошибок попадает в итоговый отчет
	MaxReportedErrors = 100
)

// ImportResult счетчики и ошибки импорта. Аддитивен, владелец один воркер.
type ImportResult struct {
	Processed  int      `json:"processed"`
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	Errors     []string `json:"errors"`
}

// BatchOutcome результат коммита одной пачки
type BatchOutcome struct {
	Successful int
	Failed     int
	Inserted   int
	Updated    int
	Errors     []string
}

// RowProcessed учитывает прочитанную строку
func (r *ImportResult) RowProcessed() {
	r.Processed++
}

// AddRowError строка не прошла валидацию
func (r *ImportResult) AddRowError(ordinal int, msg string) {
	r.Failed++
	r.appendError(FormatRowError(ordinal, msg))
}

// AddBatch сворачивает результат пачки в общий итог
func (r *ImportResult) AddBatch(o BatchOutcome) {
	r.Successful += o.Successful
	r.Failed += o.Failed
	for _, e := range o.Errors {
		r.appendError(e)
	}
}

func (r *ImportResult) appendError(e string) {
	if len(r.Errors) >= MaxAccumulatedErrors {
		// сдвигаем окно, самые старые ошибки отбрасываются
		copy(r.Errors, r.Errors[len(r.Errors)-MaxAccumulatedErrors+1:])
		r.Errors = r.Errors[:MaxAccumulatedErrors-1]
	}
	r.Errors = append(r.Errors, e)
}

// Final копия для отчета с последними MaxReportedErrors ошибками
func (r ImportResult) Final() ImportResult {
	errs := r.Errors
	if len(errs) > MaxReportedErrors {
		errs = errs[len(errs)-MaxReportedErrors:]
	}
	out := r
	out.Errors = append(make([]string, 0, len(errs)), errs...)
	return out
}

// FormatRowError "Row N: msg"
func FormatRowError(ordinal int, msg string) string {
	return fmt.Sprintf("Row %d: %s", ordinal, msg)
}
