package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// LimitConcurrentRequests returns a Gin middleware that caps the number of
// requests being processed at once; excess requests get HTTP 429.
//
// We put it in front of the replay/export routes: each accepted replay spawns
// a playback worker and each export holds a muxer sink open, so a runaway
// client must be shed before it fans out into workers.
func LimitConcurrentRequests(maxConcurrent int) gin.HandlerFunc {
	semaphore := make(chan struct{}, maxConcurrent)

	return func(c *gin.Context) {
		select {
		case semaphore <- struct{}{}:
			defer func() { <-semaphore }()
			c.Next()
		default:
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "too many concurrent requests",
			})
		}
	}
}
