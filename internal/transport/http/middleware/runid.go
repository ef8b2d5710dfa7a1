package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/nurbekov/engage-scheduler/internal/runid"
)

// RunID injects a run ID into the context and response header. If the
// incoming request already carries X-Run-ID, it is preserved; otherwise a
// new UUID v4 is generated.
func RunID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Run-ID")
		if id == "" {
			id = runid.New()
		}

		ctx := runid.WithRunID(c.Request.Context(), id)
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Run-ID", id)
		c.Next()
	}
}
