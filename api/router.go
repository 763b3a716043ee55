package api

import (
	"net/http"
	"slices"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/iiifsearch/api/handlers"
	"github.com/meghashyamc/iiifsearch/config"
	"github.com/meghashyamc/iiifsearch/logger"
	"github.com/meghashyamc/iiifsearch/query"
	"github.com/meghashyamc/iiifsearch/services/index"
	"github.com/meghashyamc/iiifsearch/services/search"
	"github.com/meghashyamc/iiifsearch/validation"
)

const routePrefix = "/api/search"

func setupRoutes(router *gin.Engine, logger logger.Logger, indexer *index.Service, searcher *search.Service, parser *query.Parser, validator *validation.Validator) {
	router.GET("/health", health())

	group := router.Group(routePrefix)
	handlers.SetupIndex(group, logger, indexer, validator)
	handlers.SetupSearch(group, logger, searcher, parser, validator)

}

func health() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	}
}

func newRouter(cfg *config.Config) *gin.Engine {
	if !cfg.GetDebug() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.UseRawPath = true
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(cfg.GetCORSOrigins()))
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	if cfg.GetDebug() {
		pprof.Register(router)
	}

	return router
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	corsCfg := cors.DefaultConfig()
	if len(origins) == 0 || slices.Contains(origins, "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = origins
		corsCfg.AllowCredentials = true
	}
	corsCfg.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsCfg.AddAllowHeaders("Authorization", headerBearer, headerSiteID)

	return cors.New(corsCfg)
}
