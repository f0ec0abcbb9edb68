package server

import (
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/creatorpay/internal/authorization"
)

// subjectFromContext maps the authenticated principal to its casbin subject.
func subjectFromContext(c *gin.Context) (string, error) {
	principal, ok := principalFromContext(c)
	if !ok {
		return "", ErrUnauthorized
	}
	if principal.IsCron() {
		return authorization.SubjectCron, nil
	}
	if principal.UserID == "" {
		return "", ErrUnauthorized
	}
	return authorization.UserSubject(principal.UserID), nil
}

func (s *Server) authorize(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject, err := subjectFromContext(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if err := s.authzSvc.Authorize(c.Request.Context(), subject, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}
