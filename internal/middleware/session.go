package middleware

import (
	"context"
	"net/http"

	"restopos/internal/apierror"
	"restopos/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	SessionKey         = "table_session"
	SessionTokenHeader = "X-Session-Token"
)

// SessionResolver is implemented by service.SessionService.
type SessionResolver interface {
	Resolve(ctx context.Context, tenantID uuid.UUID, accessToken string) (*model.TableSession, error)
}

// SessionAuth authenticates a seated guest by the access token handed out on
// session start. The session must be active and belong to the path tenant.
func SessionAuth(sessions SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, err := uuid.Parse(c.Param("tenant_id"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, apierror.New("invalid tenant id"))
			return
		}
		sess, err := sessions.Resolve(c.Request.Context(), tenantID, c.GetHeader(SessionTokenHeader))
		if err != nil {
			c.AbortWithStatusJSON(apierror.Public(err))
			return
		}
		c.Set(SessionKey, sess)
		c.Next()
	}
}

// GetSession returns the session set by SessionAuth, or nil.
func GetSession(c *gin.Context) *model.TableSession {
	v, ok := c.Get(SessionKey)
	if !ok {
		return nil
	}
	sess, _ := v.(*model.TableSession)
	return sess
}
