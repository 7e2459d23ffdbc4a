package port

// Fields структурированные данные для лога
type Fields map[string]interface{}

// LoggerPort контракт логирования для ядра и адаптеров
type LoggerPort interface {
	Info(msg string, fields Fields)
	Warn(msg string, fields Fields)
	Error(msg string, err error, fields Fields)
	Debug(msg string, fields Fields)
	// WithFields новый логгер с добавленными полями
	WithFields(fields Fields) LoggerPort
}
