package rest

import (
	"net/http"
	"strings"

	"property-import-service/internal/contextkeys"
	"property-import-service/internal/core/domain"
	"property-import-service/internal/core/port"
)

// AuthMiddleware проверяет bearer-токен и кладет Principal в контекст.
// Пустой tenant в токене -> 403.
func AuthMiddleware(verifier port.TokenVerifierPort) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := contextkeys.LoggerFromContext(r.Context()).WithFields(port.Fields{"middleware": "auth"})

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				WriteJSONError(w, http.StatusUnauthorized, "Authorization header is missing")
				return
			}

			scheme, token, found := strings.Cut(authHeader, " ")
			if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				WriteJSONError(w, http.StatusUnauthorized, "Invalid authorization header format")
				return
			}

			principal, err := verifier.Verify(r.Context(), strings.TrimSpace(token))
			if err != nil {
				logger.Warn("Token verification failed", port.Fields{"error": err.Error()})
				WriteJSONError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			if strings.TrimSpace(principal.TenantID) == "" {
				WriteJSONError(w, http.StatusForbidden, domain.ErrTenantRequired.Error())
				return
			}

			ctx := contextkeys.ContextWithPrincipal(r.Context(), *principal)
			ctx = contextkeys.ContextWithLogger(ctx, contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
				"user_id":   principal.UserID,
				"tenant_id": principal.TenantID,
			}))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin пропускает только роль admin
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := contextkeys.PrincipalFromContext(r.Context())
		if !ok {
			WriteJSONError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		if !principal.IsAdmin() {
			WriteJSONError(w, http.StatusForbidden, "Admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// principalFrom для хендлеров за AuthMiddleware
func principalFrom(w http.ResponseWriter, r *http.Request) (domain.Principal, bool) {
	principal, ok := contextkeys.PrincipalFromContext(r.Context())
	if !ok {
		contextkeys.LoggerFromContext(r.Context()).Error("Missing principal in context", nil, nil)
		WriteJSONError(w, http.StatusUnauthorized, "Authentication required")
	}
	return principal, ok
}
