package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"todo-api/internal/cache"
	"todo-api/internal/repository"
	"todo-api/pkg/logger"
)

// Health returns 200 if the process is alive. Used by load balancers.
func Health(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

// Ready returns a readiness handler that pings the store and the cache.
func Ready(repo repository.Repository, cc *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		var storeErr, cacheErr error
		var g errgroup.Group
		g.Go(func() error {
			storeErr = repo.Ping(ctx)
			return storeErr
		})
		g.Go(func() error {
			cacheErr = cc.Ping(ctx)
			return cacheErr
		})
		_ = g.Wait()

		switch {
		case storeErr != nil:
			logger.Warn(ctx, "Readiness store ping failed", "error", storeErr)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "store unavailable"})
		case cacheErr != nil:
			logger.Warn(ctx, "Readiness redis ping failed", "error", cacheErr)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "redis unavailable"})
		default:
			c.String(http.StatusOK, "OK")
		}
	}
}
