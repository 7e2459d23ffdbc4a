package domain

import "errors"

// ErrTokenInvalid токен не прошел проверку подписи или срока
var ErrTokenInvalid = errors.New("token is invalid or expired")

const RoleAdmin = "admin"

// Principal аутентифицированный пользователь запроса
type Principal struct {
	UserID   string
	TenantID string
	Email    string
	Role     string
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }
