package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/medirec/internal/common"
	"github.com/suPer8Hu/medirec/internal/httpapi/handlers"
	"github.com/suPer8Hu/medirec/internal/httpapi/middleware"
	"github.com/suPer8Hu/medirec/internal/logger"
)

func NewRouter(h *handlers.Handler, log *logger.Logger) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog(log))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.GET("/ping", h.Ping)
	r.GET("/symptoms", h.ListSymptoms)

	// auth
	r.POST("/auth/signup", h.SignUp)
	r.POST("/auth/login", h.Login)
	r.POST("/auth/logout", h.Logout)
	r.GET("/session", h.GetSession)
	r.GET("/session/events", h.SessionEvents)

	// anonymous predictions are allowed, they just are not saved
	r.POST("/predict", h.Predict)

	authGroup := r.Group("/")
	authGroup.Use(middleware.RequireSession(h.Session))
	authGroup.GET("/history", h.History)
	authGroup.GET("/profile", h.GetProfile)
	authGroup.PUT("/profile", h.UpdateProfile)
	authGroup.POST("/profile/avatar", h.UploadAvatar)
	return r
}
