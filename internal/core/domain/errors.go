package domain

import "errors"

var (
	ErrFileRequired     = errors.New("CSV file is required")
	ErrNotCSV           = errors.New("Only CSV files are allowed")
	ErrFileTooLarge     = errors.New("file exceeds the upload size limit")
	ErrInvalidJob       = errors.New("invalid import job")
	ErrJobNotFound      = errors.New("import job not found")
	ErrPropertyNotFound = errors.New("property not found")
	ErrTenantRequired   = errors.New("Valid user tenantId is required")
	ErrForbidden        = errors.New("forbidden")
	ErrSourceNotFound   = errors.New("source file not found")
)

// RowError ошибка валидации одной строки CSV. Строка пропускается, импорт продолжается.
type RowError struct {
	Msg string
}

func (e *RowError) Error() string { return e.Msg }

func rowErr(msg string) error { return &RowError{Msg: msg} }
