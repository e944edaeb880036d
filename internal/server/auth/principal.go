package auth

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/workflow/internal/common"
)

// Principal is the verified identity carried by a session token. It is
// rebuilt from the token on every request and never cached.
type Principal struct {
	SubjectID string `json:"subject_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
}

func (p Principal) IsAdmin() bool {
	return p.Role == common.RoleAdmin
}

type ctxKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// PrincipalFromContext returns the principal stored by WithPrincipal.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}

// ParseBearer extracts the token from an "Authorization: Bearer <token>"
// header value. The scheme is matched case-insensitively.
func ParseBearer(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, common.BearerScheme) {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}
