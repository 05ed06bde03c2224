package messaging

// Имена очередей по умолчанию; переопределяются конфигурацией.
const (
	DefaultMediaTaskQueue   = "wove_media_tasks"
	DefaultMediaResultQueue = "wove_media_results"
	DefaultPushQueue        = "wove_push_notifications"
)

// RetryCountHeader - заголовок сообщения с номером попытки обработки.
// После исчерпания бюджета сообщение уходит в очередь <queue>.dlq.
const RetryCountHeader = "x-retry-count"

// DLQSuffix добавляется к имени основной очереди для мертвых сообщений.
const DLQSuffix = ".dlq"
