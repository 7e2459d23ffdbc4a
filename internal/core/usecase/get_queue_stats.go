package usecase

import (
	"context"

	"property-import-service/internal/contextkeys"
	"property-import-service/internal/core/domain"
	"property-import-service/internal/core/port"
	"property-import-service/internal/core/port/usecases_port"
)

// GetQueueStatsUseCase waiting/deadLettered из брокера, остальное из истории
type GetQueueStatsUseCase struct {
	inspector port.QueueInspectorPort
	history   port.ImportJobRepositoryPort
}

var _ usecases_port.GetQueueStatsPort = (*GetQueueStatsUseCase)(nil)

func NewGetQueueStatsUseCase(inspector port.QueueInspectorPort, history port.ImportJobRepositoryPort) *GetQueueStatsUseCase {
	return &GetQueueStatsUseCase{inspector: inspector, history: history}
}

func (uc *GetQueueStatsUseCase) Get(ctx context.Context) (*domain.QueueStatsView, error) {
	counts, err := uc.history.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	view := &domain.QueueStatsView{
		Waiting:   counts.Queued,
		Active:    counts.Running,
		Completed: counts.Completed,
		Failed:    counts.Failed,
	}

	stats, err := uc.inspector.Inspect(ctx)
	if err != nil {
		contextkeys.LoggerFromContext(ctx).Warn("Queue inspection failed, waiting count taken from history",
			port.Fields{"use_case": "GetQueueStats", "error": err.Error()})
		return view, nil
	}
	view.Waiting = stats.Waiting
	view.DeadLettered = stats.DeadLettered
	return view, nil
}
