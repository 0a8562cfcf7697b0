package api

import (
	"context"
	"log/slog"
	stdhttp "net/http"

	intconfig "apicore/internal/config"
	"apicore/internal/domain"
	h "apicore/internal/http/handlers"
	"apicore/internal/http/middleware"
	"apicore/internal/query"
	"apicore/internal/repositories"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps is everything the router wires into handlers.
type Deps struct {
	Env      intconfig.Env
	Logger   *slog.Logger
	Pipeline *middleware.Pipeline
	Stores   repositories.Stores
	Gatherer prometheus.Gatherer
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.CORS(d.Env.CORSAllowedOrigins))

	if err := r.SetTrustedProxies(nil); err != nil && d.Logger != nil {
		d.Logger.Warn("failed to set trusted proxies", "error", err)
	}

	p := d.Pipeline
	r.NoRoute(p.Handle(func(ctx context.Context, req *middleware.Request) (any, error) {
		return nil, domain.HTTPError{
			Status:  stdhttp.StatusNotFound,
			Code:    domain.CodeResourceNotFound,
			Message: "Route not found",
			Details: map[string]any{"method": req.Context.Method, "path": req.Context.Path},
		}
	}))

	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	system := h.System{}
	auth := h.Auth{Users: d.Stores.Users, Tokens: p.Auth}
	users := h.Users{
		Repo:   d.Stores.Users,
		Search: query.SearchNormalizer{MinLength: 1, MaxLength: 100, AllowedSortFields: []string{"createdAt", "updatedAt", "name", "email"}},
	}
	projects := h.Projects{
		Repo:   d.Stores.Projects,
		Search: query.SearchNormalizer{MinLength: 2, MaxLength: 100, AllowedSortFields: []string{"createdAt", "updatedAt", "name"}},
	}
	files := h.Files{Rules: query.ImageRules(0)}

	const (
		usersKey    = ":/api/users"
		projectsKey = ":/api/projects"
	)

	api := r.Group("/api")
	{
		api.GET("/health", p.Handle(system.Health))
		api.GET("/db-check", p.Handle(system.DBCheck))
		api.GET("/routes", p.Handle(system.Routes))

		// Auth
		authGroup := api.Group("/auth")
		authGroup.POST("/register", p.Handle(auth.Register, middleware.Invalidates(usersKey)))
		authGroup.POST("/login", p.Handle(auth.Login))
		authGroup.GET("/me", p.Handle(auth.Me, middleware.Authenticated()))

		// Users
		usersGroup := api.Group("/users")
		usersGroup.GET("", p.Handle(users.List, middleware.Authenticated(), middleware.WithCache(middleware.CacheOptions{})))
		usersGroup.GET("/deleted", p.Handle(users.Deleted, middleware.Roles("admin")))
		usersGroup.GET("/:id", p.Handle(users.Get, middleware.Authenticated(), middleware.WithCache(middleware.CacheOptions{})))
		usersGroup.GET("/:id/report", p.Handle(users.Report, middleware.Authenticated()))
		usersGroup.POST("", p.Handle(users.Create, middleware.Roles("admin"), middleware.Invalidates(usersKey)))
		usersGroup.PUT("/:id", p.Handle(users.Update, middleware.Roles("admin"), middleware.Invalidates(usersKey)))
		usersGroup.DELETE("/:id", p.Handle(users.Delete, middleware.Roles("admin"), middleware.Invalidates(usersKey, projectsKey)))
		usersGroup.POST("/:id/restore", p.Handle(users.Restore, middleware.Roles("admin"), middleware.Invalidates(usersKey)))

		// Projects
		projectsGroup := api.Group("/projects")
		projectsGroup.GET("", p.Handle(projects.List, middleware.WithCache(middleware.CacheOptions{})))
		projectsGroup.GET("/:id", p.Handle(projects.Get, middleware.WithCache(middleware.CacheOptions{})))
		projectsGroup.POST("", p.Handle(projects.Create, middleware.Authenticated(), middleware.Invalidates(projectsKey, usersKey)))
		projectsGroup.PUT("/:id", p.Handle(projects.Update, middleware.Authenticated(), middleware.Invalidates(projectsKey, usersKey)))
		projectsGroup.DELETE("/:id", p.Handle(projects.Delete, middleware.Authenticated(), middleware.Invalidates(projectsKey, usersKey)))

		// Files
		api.POST("/files/inspect", p.Handle(files.Inspect, middleware.Authenticated()))
	}

	h.SetRouter(r)
	return r
}
