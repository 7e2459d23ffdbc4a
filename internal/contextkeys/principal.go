package contextkeys

import (
	"context"

	"property-import-service/internal/core/domain"
)

type principalKeyType struct{}

var principalKey = principalKeyType{}

func ContextWithPrincipal(ctx context.Context, p domain.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFromContext(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(principalKey).(domain.Principal)
	return p, ok
}
