package http

import (
	"net/http"

	appauthz "github.com/astro-web3/teams-gate/internal/app/authz"
	"github.com/astro-web3/teams-gate/internal/config"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// RouterDeps are the collaborators the gate router is assembled from.
type RouterDeps struct {
	Authenticator Authenticator
	Evaluator     appauthz.Evaluator
	Routes        TeamRoutes
	Upstream      gin.HandlerFunc
}

func NewRouter(cfg *config.Config, deps RouterDeps) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()

	router.Use(gin.Recovery())
	if cfg.Observability.TraceEnabled {
		router.Use(otelgin.Middleware(serviceName))
	}
	router.Use(requestIDMiddleware())
	router.Use(loggingMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	api := router.Group("/api")
	api.Use(authenticationMiddleware(deps.Authenticator))
	api.Use(requireTeamMember(deps.Evaluator, deps.Routes))
	api.Any("/*path", deps.Upstream)

	return router
}
