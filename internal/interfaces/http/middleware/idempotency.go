package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/fieldops/stockledger/internal/domain/shared"
	"github.com/fieldops/stockledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// IdempotencyKeyHeader lets callers retry a POST without posting it twice
	IdempotencyKeyHeader = "Idempotency-Key"

	maxIdempotencyKeyLength = 255
)

// Idempotency rejects a POST whose Idempotency-Key was already used by the same actor on the same path.
// A key is released again when the request does not succeed, so a failed call may be retried under it.
// Store outages fail open: the request proceeds and the failure is logged.
func Idempotency(store shared.IdempotencyStore, ttl time.Duration, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader))
		if key == "" || c.Request.Method != http.MethodPost {
			c.Next()
			return
		}
		if len(key) > maxIdempotencyKeyLength {
			c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeBadRequest, IdempotencyKeyHeader+" is too long", GetRequestID(c)))
			return
		}

		ctx := c.Request.Context()
		storeKey := "http:" + GetActor(c).ID + ":" + c.Request.URL.Path + ":" + key
		first, err := store.MarkProcessed(ctx, storeKey, ttl)
		if err != nil {
			log.Warn("Idempotency store unavailable, processing request without deduplication",
				zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}
		if !first {
			c.AbortWithStatusJSON(http.StatusConflict, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeDuplicateRequest,
				"A request with this "+IdempotencyKeyHeader+" was already processed",
				GetRequestID(c),
			))
			return
		}

		c.Next()

		if c.Writer.Status() >= http.StatusBadRequest {
			if err := store.Forget(ctx, storeKey); err != nil {
				log.Warn("Failed to release idempotency key", zap.String("key", key), zap.Error(err))
			}
		}
	}
}
