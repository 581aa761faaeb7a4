package middleware

import (
	"net/http"
	"strings"

	"github.com/fieldops/stockledger/internal/domain/shared"
	"github.com/fieldops/stockledger/internal/infrastructure/logger"
	"github.com/fieldops/stockledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

const (
	// ActorIDHeader identifies the user performing the request
	ActorIDHeader = "X-Actor-ID"
	// ActorRoleHeader carries the user's workflow role, recorded on approvals
	ActorRoleHeader = "X-Actor-Role"

	actorKey = "actor"

	maxActorIDLength   = 100
	maxActorRoleLength = 50
)

// Actor reads the acting user from the request headers into the gin and request contexts.
// Requests that change state are rejected with 401 when no actor is supplied.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := shared.Actor{
			ID:   strings.TrimSpace(c.GetHeader(ActorIDHeader)),
			Role: strings.ToUpper(strings.TrimSpace(c.GetHeader(ActorRoleHeader))),
		}
		if len(actor.ID) > maxActorIDLength || len(actor.Role) > maxActorRoleLength {
			c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeBadRequest, "Actor headers are too long", GetRequestID(c)))
			return
		}
		if actor.ID == "" && isMutating(c.Request.Method) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeUnauthorized, ActorIDHeader+" header is required", GetRequestID(c)))
			return
		}

		if actor.ID != "" {
			ctx := c.Request.Context()
			ctx, _ = logger.WithActor(ctx, logger.FromContext(ctx), actor.ID, actor.Role)
			c.Request = c.Request.WithContext(ctx)
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

// GetActor returns the actor stored by the Actor middleware
func GetActor(c *gin.Context) shared.Actor {
	if v, ok := c.Get(actorKey); ok {
		if actor, ok := v.(shared.Actor); ok {
			return actor
		}
	}
	return shared.Actor{}
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
