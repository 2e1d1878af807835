package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// NewRouter собирает маршруты API и служебные поверхности.
// serveWS — апгрейдер websocket-наблюдателей (nil отключает /ws).
func NewRouter(h *Handler, serveWS http.HandlerFunc, allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware(allowedOrigins))

	r.GET("/assets", h.GetAssets)
	r.GET("/facilities/:id/units", h.ListUnits)
	r.GET("/facilities/:id/schedule", h.GetSchedule)

	r.POST("/reserve", h.Reserve)
	r.POST("/check-in", h.CheckIn)
	r.POST("/check-out", h.CheckOut)
	r.POST("/cancel", h.Cancel)

	r.GET("/bookings/user/:userName", h.UserBookings)

	r.GET("/system/health", h.Health)
	r.POST("/system/seed", h.Seed)

	if serveWS != nil {
		r.GET("/ws", func(c *gin.Context) {
			serveWS(c.Writer, c.Request)
		})
	}

	return r
}

// corsMiddleware отражает разрешённый Origin; "*" открывает всех.
func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allowAll := false
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			if allowAll {
				c.Header("Access-Control-Allow-Origin", "*")
			} else if _, ok := allowed[origin]; ok {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
			}
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
