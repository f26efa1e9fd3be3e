// Package httpapi exposes the server's HTTP surface: the read-only room
// listing, a liveness route, and the websocket upgrade endpoint that hands
// connections to the gateway.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cory-johannsen/scrumpoker/internal/gateway"
	"github.com/cory-johannsen/scrumpoker/internal/room"
)

// NewRouter builds the gin engine with all routes registered.
//
// Precondition: store, gw, and logger must be non-nil.
func NewRouter(store *room.Store, gw *gateway.Gateway, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "Scrum Poker API is running")
	})

	router.GET("/api/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rooms": store.Summaries()})
	})

	router.GET("/ws", func(c *gin.Context) {
		gw.HandleWS(c.Writer, c.Request)
	})

	return router
}

// requestLogger logs each HTTP request after it completes. The websocket
// route only logs once the connection ends.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
		)
	}
}
