package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rowshare-backend/internal/shared/server/middleware"
	"rowshare-backend/internal/shared/server/respond"
)

// registerMeRoutes attaches the /me endpoint.
func registerMeRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", meHandler)
}

func meHandler(c *gin.Context) {
	sub := middleware.SubjectFromContext(c)
	if sub == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
		return
	}

	response := gin.H{
		"sub":   sub,
		"admin": middleware.IsAdmin(c),
	}
	if email := middleware.EmailFromContext(c); email != "" {
		response["email"] = email
	}
	if name := middleware.NameFromContext(c); name != "" {
		response["name"] = name
	}

	respond.JSON(c, http.StatusOK, response)
}
