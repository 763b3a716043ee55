package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/iiifsearch/config"
	"github.com/meghashyamc/iiifsearch/db/kvdb"
	"github.com/meghashyamc/iiifsearch/db/searchdb"
	"github.com/meghashyamc/iiifsearch/flatten"
	"github.com/meghashyamc/iiifsearch/languages"
	"github.com/meghashyamc/iiifsearch/logger"
	"github.com/meghashyamc/iiifsearch/query"
	"github.com/meghashyamc/iiifsearch/services/index"
	"github.com/meghashyamc/iiifsearch/services/search"
	"github.com/meghashyamc/iiifsearch/validation"
)

type server struct {
	cfg        *config.Config
	router     *gin.Engine
	httpServer *http.Server
	kvdb       kvdb.DB
	searchdb   searchdb.DB
	indexer    *index.Service
	searcher   *search.Service
	parser     *query.Parser
	validator  *validation.Validator
	logger     logger.Logger
}

func Run(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)

	defer cancel()

	s := &server{
		cfg:    cfg,
		logger: logger.NewWithLevel(cfg.GetLogLevel()),
	}
	if err := s.setupDependencies(); err != nil {
		return err
	}
	s.setupRouter()
	s.setupHTTPServer()
	s.setupGracefulShutdown(ctx)

	return nil
}

func (s *server) setupDependencies() error {
	var err error
	s.kvdb, err = kvdb.New(s.logger, s.cfg)
	if err != nil {
		s.logger.Error("error creating kvDB", "err", err.Error())
		return err
	}
	s.searchdb, err = searchdb.New(s.logger, s.cfg)
	if err != nil {
		s.logger.Error("error creating searchDB", "err", err.Error())
		return err
	}
	s.validator, err = validation.New(s.logger)
	if err != nil {
		s.logger.Error("error creating validator", "err", err.Error())
		return err
	}

	table := languages.DefaultTable()
	resources := kvdb.NewStore(s.kvdb)
	flattener := flatten.New(flatten.Config{DefaultLanguage: s.cfg.GetDefaultLanguage()})

	s.indexer = index.New(s.logger, s.searchdb, resources, flattener, table)
	s.searcher = search.New(s.logger, s.searchdb, resources, search.Options{
		TrigramThreshold:     s.cfg.GetTrigramThreshold(),
		TrigramWordThreshold: s.cfg.GetTrigramWordThreshold(),
	})
	s.parser = query.NewParser(parserOptions(s.cfg), table)

	return nil

}

func parserOptions(cfg *config.Config) query.Options {
	return query.Options{
		FacetOnManifests:     cfg.GetFacetOnManifests(),
		NonLatinFulltext:     cfg.GetNonLatinFulltext(),
		SearchMultipleFields: cfg.GetSearchMultipleFields(),
		NumberOfFacets:       cfg.GetNumberOfFacets(),
		PageSize:             cfg.GetPageSize(),
		FulltextScripts:      cfg.GetFulltextScripts(),
	}
}

func (s *server) setupRouter() {
	router := newRouter(s.cfg)

	router.Use(loggingMiddleware(s.logger))
	router.Use(siteMiddleware(s.logger))

	setupRoutes(router, s.logger, s.indexer, s.searcher, s.parser, s.validator)

	s.router = router
}

func (s *server) setupHTTPServer() {

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", s.cfg.GetPort()),
		Handler: s.router.Handler(),
	}
	s.httpServer = httpServer
	go func() {
		s.logger.Info("starting http server", "addr", httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()
}

func (s *server) setupGracefulShutdown(ctx context.Context) {

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		s.logger.Info("starting to shut down http server")
		shutdownCtx := context.Background()
		shutdownCtx, cancel := context.WithTimeout(shutdownCtx, 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error shutting down http server", "err", err)
		}
		if err := s.searchdb.Close(); err != nil {
			s.logger.Error("error closing searchDB", "err", err)
		}
		if err := s.kvdb.Close(); err != nil {
			s.logger.Error("error closing kvDB", "err", err)
		}
		s.logger.Info("shut down http server successfully")
	}()

	wg.Wait()
}
