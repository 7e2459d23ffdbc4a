package port

import (
	"context"
	"time"

	"property-import-service/internal/core/domain"
)

// TokenVerifierPort проверка bearer-токенов
type TokenVerifierPort interface {
	Verify(ctx context.Context, token string) (*domain.Principal, error)
}

// TokenIssuerPort выпуск токенов (cli-команда token для локальной разработки)
type TokenIssuerPort interface {
	Issue(ctx context.Context, p domain.Principal, ttl time.Duration) (string, error)
}
