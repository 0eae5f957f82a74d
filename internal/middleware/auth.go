package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/livsafe/livsafe-api/internal/model"
	apperrors "github.com/livsafe/livsafe-api/pkg/errors"
	"github.com/livsafe/livsafe-api/pkg/httputil"
)

// ContextPrincipal is the gin key holding the authenticated principal.
const ContextPrincipal = "principal"

// PrincipalResolver turns a bearer token into the account that owns it.
type PrincipalResolver interface {
	Resolve(ctx context.Context, token string) (model.Principal, error)
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p model.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (model.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(model.Principal)
	return p, ok && p.Kind != ""
}

type AuthMiddleware struct {
	resolver PrincipalResolver
}

func NewAuthMiddleware(resolver PrincipalResolver) *AuthMiddleware {
	return &AuthMiddleware{resolver: resolver}
}

// Authenticate resolves the bearer token and stores the principal on the
// request context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			httputil.Fail(c, apperrors.Unauthenticated("missing authorization header", nil))
			return
		}

		scheme, token, ok := strings.Cut(header, " ")
		token = strings.TrimSpace(token)
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			httputil.Fail(c, apperrors.Unauthenticated("invalid authorization format", nil))
			return
		}

		principal, err := m.resolver.Resolve(c.Request.Context(), token)
		if err != nil {
			httputil.Fail(c, err)
			return
		}

		c.Set(ContextPrincipal, principal)
		c.Request = c.Request.WithContext(WithPrincipal(c.Request.Context(), principal))
		c.Next()
	}
}

func principal(c *gin.Context) (model.Principal, bool) {
	return PrincipalFromContext(c.Request.Context())
}

// Doctor adapts h to routes that only doctors may call.
func Doctor(h func(c *gin.Context, doctor *model.Doctor)) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := principal(c)
		if !ok {
			httputil.Fail(c, apperrors.Unauthenticated("authentication required", nil))
			return
		}
		if p.Kind != model.KindDoctor {
			httputil.Fail(c, apperrors.Forbidden("this action is only available to doctors"))
			return
		}
		h(c, p.Doctor)
	}
}

// Organization adapts h to routes that only organizations may call.
func Organization(h func(c *gin.Context, org *model.Organization)) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := principal(c)
		if !ok {
			httputil.Fail(c, apperrors.Unauthenticated("authentication required", nil))
			return
		}
		if p.Kind != model.KindOrganization {
			httputil.Fail(c, apperrors.Forbidden("this action is only available to organizations"))
			return
		}
		h(c, p.Organization)
	}
}

// Any adapts h to routes open to every authenticated principal.
func Any(h func(c *gin.Context, p model.Principal)) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := principal(c)
		if !ok {
			httputil.Fail(c, apperrors.Unauthenticated("authentication required", nil))
			return
		}
		h(c, p)
	}
}
