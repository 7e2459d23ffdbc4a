package constants

// Основной обменник и очередь импорта
const (
	ImportsExchange         = "imports_exchange"
	QueueImportJobs         = "import-queue"
	RoutingKeyImportJob     = "imports.job.requested"
	ImportQueueMessageTTLms = 86400000 // 24h
)

// Ретраи и финальная DLQ
const (
	ImportRetryExchange = QueueImportJobs + "_retry_ex"
	ImportRetryQueue    = QueueImportJobs + "_retry_wait"

	FinalDLXExchange   = "imports_final_dlx"
	FinalDLQ           = "imports_final_dlq"
	FinalDLQRoutingKey = "imports.dlq.key"
)

// Метаданные сообщений
const (
	HeaderTraceID      = "x-trace-id"
	HeaderEventType    = "event-type"
	HeaderEventVersion = "event-version"
	HeaderLastError    = "x-last-error"

	EventImportJobRequested = "ImportJobRequestedEvent"
	EventVersionV1          = "1.0.0"
)
