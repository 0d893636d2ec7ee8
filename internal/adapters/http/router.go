package http

import (
	"context"
	"net/http"
	"slices"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Jam/internal/adapters/signal"
	"github.com/dkeye/Jam/internal/app/orch"
	"github.com/dkeye/Jam/internal/config"
	"github.com/dkeye/Jam/internal/domain"
	"github.com/dkeye/Jam/internal/metrics"
)

const sessionName = "JamSessions"

func genClientToken() string {
	idStr := uuid.NewString()
	return idStr
}

// ClientTokenMiddleware keeps a per-browser token in the session cookie.
// It is only used to correlate connections in the logs.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		token, _ := session.Get("ct").(string)
		if token == "" {
			token = genClientToken()
			session.Set("ct", token)
			if err := session.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("session save")
			}
		}
		c.Set(signal.ClientTokenKey, token)
		c.Next()
	}
}

type memberView struct {
	Username string `json:"username"`
}

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator, ctrl *signal.SignalWSController) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true, Secure: cfg.TLS.Enabled})
	r.Use(sessions.Sessions(sessionName, store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")

	ws := func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("client", c.GetString(signal.ClientTokenKey)).Msg("ws signal endpoint hit")
		ctrl.HandleSignal(ctx, c)
	}
	api.GET("/ws", ws)
	// older clients connect here
	r.GET("/socket", ws)

	// GET /api/rooms: list rooms
	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rooms": o.Rooms.List()})
	})

	// GET /api/rooms/:id: who is in a room
	api.GET("/rooms/:id", func(c *gin.Context) {
		var uri struct {
			ID string `uri:"id" binding:"required,max=128"`
		}
		if err := c.ShouldBindUri(&uri); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
			return
		}
		sids := o.Rooms.MembersOf(domain.RoomID(uri.ID))
		if len(sids) == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		members := make([]memberView, 0, len(sids))
		for _, sid := range sids {
			if conn, ok := o.Registry.Get(sid); ok {
				members = append(members, memberView{Username: conn.Username})
			}
		}
		c.JSON(http.StatusOK, gin.H{"id": uri.ID, "members": members, "count": len(members)})
	})

	return r
}

// WithCORS wraps the engine with the configured origin allowlist. An empty
// list leaves cross-origin requests to the browser's same-origin rules.
// Credentials (the session cookie) are only shared with origins listed by
// name, never with "*".
func WithCORS(h http.Handler, allow []string) http.Handler {
	if len(allow) == 0 {
		return h
	}
	return cors.New(cors.Options{
		AllowedOrigins:   allow,
		AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: !slices.Contains(allow, "*"),
	}).Handler(h)
}
