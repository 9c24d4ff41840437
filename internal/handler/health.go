package handler

import (
	"context"
	"net/http"
	"time"

	"invoiceflow/internal/infra"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Health returns a JSON health check response.
// Checks DB and Redis connectivity and reports the PDF breaker state; never
// exposes credentials or internals. A nil rdb or breaker is reported as
// "disabled".
func Health(db *gorm.DB, rdb *redis.Client, breaker *infra.CircuitBreaker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		dbStatus := "connected"
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(ctx) != nil {
			dbStatus = "error"
		}

		redisStatus := "disabled"
		if rdb != nil {
			redisStatus = "connected"
			if rdb.Ping(ctx).Err() != nil {
				redisStatus = "error"
			}
		}

		pdfStatus := "disabled"
		if breaker != nil {
			pdfStatus = breaker.State().String()
		}

		status := http.StatusOK
		if dbStatus != "connected" || redisStatus == "error" {
			status = http.StatusServiceUnavailable
		}

		c.JSON(status, gin.H{
			"ok":        status == http.StatusOK,
			"db":        dbStatus,
			"redis":     redisStatus,
			"pdf":       pdfStatus,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// Ready is the readiness check: the CORS origin list must be safe when
// running in production.
func Ready(corsOK bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := http.StatusOK
		if !corsOK {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"ready": corsOK,
			"deps":  gin.H{"corsOk": corsOK},
		})
	}
}
