package router

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/helpy/paths"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/psds-microservice/supportbot/api"
	"github.com/psds-microservice/supportbot/internal/auth"
	"github.com/psds-microservice/supportbot/internal/handler"
	"github.com/psds-microservice/supportbot/internal/logger"
	"github.com/psds-microservice/supportbot/internal/metrics"
	"github.com/psds-microservice/supportbot/internal/web"
)

type Deps struct {
	Log     *logger.Logger
	Metrics *metrics.Metrics
	Auth    *auth.Authenticator
	Limiter *auth.LoginLimiter

	Health  *handler.HealthHandler
	Login   *handler.AuthHandler
	Tickets *handler.TicketHandler
	Pages   *handler.PageHandler
	Media   *handler.MediaHandler
}

// New builds the dashboard: pages, JSON API, media, docs and probes.
func New(d Deps) (http.Handler, error) {
	tpl, err := web.Templates()
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(gin.Recovery(), logger.Middleware(d.Log), d.Metrics.Middleware())
	r.SetHTMLTemplate(tpl)

	probes(r, d.Health, d.Metrics)
	swagger(r)
	r.StaticFS("/static", http.FS(web.Static()))

	r.GET("/", func(c *gin.Context) { c.Redirect(http.StatusFound, "/dashboard") })
	r.GET("/login", d.Login.LoginPage)
	r.POST("/login", d.Limiter.Middleware(), d.Login.LoginForm)
	r.GET("/logout", d.Login.Logout)
	r.POST("/api/login", d.Limiter.Middleware(), d.Login.Login)

	staff := r.Group("/", d.Auth.RequireStaff())
	{
		staff.GET("/dashboard", d.Pages.Dashboard)
		staff.GET("/tickets", d.Pages.Tickets)
		staff.GET("/tickets/:id", d.Pages.Ticket)
		staff.POST("/tickets/:id/status", d.Pages.UpdateStatus)
		staff.POST("/tickets/:id/reply", d.Pages.Reply)
		staff.GET("/users", d.Pages.Users)
		staff.GET("/media/:id", d.Media.Get)
	}

	v1 := r.Group("/api", d.Auth.RequireStaff())
	{
		v1.POST("/logout", d.Login.Logout)
		v1.GET("/tickets", d.Tickets.List)
		v1.GET("/tickets/:id", d.Tickets.Get)
		v1.PUT("/tickets/:id", d.Tickets.Update)
		v1.POST("/tickets/:id/status", d.Tickets.Update)
		v1.POST("/tickets/:id/messages", d.Tickets.SendMessage)
		v1.GET("/tickets/:id/conversation", d.Tickets.Conversation)
		v1.GET("/stats", d.Tickets.Stats)
		v1.GET("/users", d.Tickets.Users)
	}

	return r, nil
}

// NewProbes serves health, readiness and metrics for the bot process.
func NewProbes(h *handler.HealthHandler, m *metrics.Metrics) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	probes(r, h, m)
	return r
}

func probes(r *gin.Engine, h *handler.HealthHandler, m *metrics.Metrics) {
	r.GET(paths.PathHealth, h.Health)
	r.GET(paths.PathReady, h.Ready)
	r.GET("/metrics", gin.WrapH(m.Handler()))
}

func swagger(r *gin.Engine) {
	r.GET(paths.PathSwagger, func(c *gin.Context) { c.Redirect(http.StatusFound, paths.PathSwagger+"/") })
	r.GET(paths.PathSwagger+"/*any", func(c *gin.Context) {
		if strings.TrimPrefix(c.Param("any"), "/") == "openapi.json" {
			c.Data(http.StatusOK, "application/json", api.OpenAPISpec)
			return
		}
		if strings.TrimPrefix(c.Param("any"), "/") == "" {
			c.Request.URL.Path = paths.PathSwagger + "/index.html"
			c.Request.RequestURI = paths.PathSwagger + "/index.html"
		}
		ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL(paths.PathSwagger+"/openapi.json"))(c)
	})
}
