package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/creatorpay/internal/audit/domain"
	auditcontext "github.com/smallbiznis/creatorpay/internal/auditcontext"
	authdomain "github.com/smallbiznis/creatorpay/internal/auth/domain"
	obscontext "github.com/smallbiznis/creatorpay/internal/observability/context"
)

const (
	contextUserIDKey    = "user_id"
	contextPrincipalKey = "principal"
)

// TokenVerifier resolves a bearer credential to the calling principal.
type TokenVerifier interface {
	Verify(raw string) (authdomain.Principal, error)
}

// AuthRequired accepts a bearer JWT or, for cron callers, the shared cron token.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c.GetHeader("Authorization"))
		if raw == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		principal, err := s.verifier.Verify(raw)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		ctx := c.Request.Context()
		if principal.IsCron() {
			ctx = obscontext.WithActor(ctx, string(auditdomain.ActorTypeCron), "cron")
			ctx = auditcontext.WithActor(ctx, string(auditdomain.ActorTypeCron), "cron")
		} else {
			ctx = obscontext.WithActor(ctx, string(auditdomain.ActorTypeUser), principal.UserID)
			ctx = auditcontext.WithActor(ctx, string(auditdomain.ActorTypeUser), principal.UserID)
			c.Set(contextUserIDKey, principal.UserID)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Set(contextPrincipalKey, principal)
		c.Next()
	}
}

// UserRequired rejects the cron principal on user-only routes.
func UserRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := userIDFromContext(c); !ok {
			AbortWithError(c, ErrForbidden)
			return
		}
		c.Next()
	}
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < len("Bearer ") || !strings.EqualFold(header[:len("Bearer ")], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(header[len("Bearer "):])
}

func principalFromContext(c *gin.Context) (authdomain.Principal, bool) {
	value, ok := c.Get(contextPrincipalKey)
	if !ok {
		return authdomain.Principal{}, false
	}
	principal, ok := value.(authdomain.Principal)
	return principal, ok
}

func userIDFromContext(c *gin.Context) (string, bool) {
	principal, ok := principalFromContext(c)
	if !ok || principal.Kind != authdomain.PrincipalUser || principal.UserID == "" {
		return "", false
	}
	return principal.UserID, true
}
