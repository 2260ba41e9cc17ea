package relay

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/coderoom/coderoom/internal/config"
	"github.com/coderoom/coderoom/internal/domain"
)

// SetupRouter wires the signal endpoint and the small REST surface.
func SetupRouter(ctx context.Context, cfg *config.Config, ctl *Controller) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Server.Secret))
	r.Use(sessions.Sessions("coderoom", store))

	r.GET("/ws", func(c *gin.Context) {
		ctl.HandleSignal(ctx, c)
	})

	api := r.Group("/api")

	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rooms": ctl.Rooms.List()})
	})

	// Profile remembers the last display name across visits via the cookie
	// session; it has no bearing on in-room identity.
	api.GET("/profile", func(c *gin.Context) {
		s := sessions.Default(c)
		name, _ := s.Get("username").(string)
		c.JSON(http.StatusOK, gin.H{"username": name})
	})

	api.POST("/profile", func(c *gin.Context) {
		var req struct {
			Username string `json:"username"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
			return
		}
		if err := domain.ValidateUsername(req.Username); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s := sessions.Default(c)
		s.Set("username", req.Username)
		if err := s.Save(); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "session save failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"username": req.Username})
	})

	log.Info().Str("module", "relay").Msg("router setup")
	return r
}
