package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// NewRouter wires the API routes.
func NewRouter(tree *TreeHandler, ws *WSHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	api := r.Group("/api")
	{
		api.GET("/sources", tree.GetSources)
		api.GET("/sources/:name/list", tree.GetList)
		api.GET("/sources/:name/tree", tree.GetTree)
		api.GET("/sources/:name/files", tree.GetFiles)
		api.PUT("/sources/:name/files", tree.PutFiles)
		api.GET("/ws", ws.HandleWS)
	}
	return r
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, PUT, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
