package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/iiifsearch/db/kvdb"
	"github.com/meghashyamc/iiifsearch/db/searchdb"
	"github.com/meghashyamc/iiifsearch/flatten"
	"github.com/meghashyamc/iiifsearch/logger"
	"github.com/meghashyamc/iiifsearch/services/index"
	"github.com/meghashyamc/iiifsearch/validation"
)

const paramID = "id"

type IngestResponse struct {
	*kvdb.Resource
	FirstCanvasID   string         `json:"first_canvas_id,omitempty"`
	FirstCanvasJSON map[string]any `json:"first_canvas_json,omitempty"`
}

type IndexablesRequest struct {
	ResourceID string `form:"resource_id"`
	ContentID  string `form:"content_id"`
	Type       string `form:"type"`
	Subtype    string `form:"subtype"`
}

func SetupIndex(router gin.IRouter, logger logger.Logger, indexer *index.Service, validator *validation.Validator) {
	router.POST("/iiif", handleIngest(indexer, logger, validator))
	router.GET("/iiif/:id", handleGetResource(indexer, logger))
	router.PUT("/iiif/:id", handleUpdate(indexer, logger, validator))
	router.PATCH("/iiif/:id", handleUpdate(indexer, logger, validator))
	router.DELETE("/iiif/:id", handleDelete(indexer, logger))
	router.GET("/contexts", handleContexts(indexer, logger))
	router.GET("/indexables", handleIndexables(indexer, logger))
	router.POST("/model", handleModel(indexer, logger, validator))

}

// resourceErrorStatus maps store errors on a single resource to a status.
func resourceErrorStatus(err error) int {
	switch {
	case errors.Is(err, kvdb.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, kvdb.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, kvdb.ErrInvalidKey):
		return http.StatusNotAcceptable
	default:
		return http.StatusInternalServerError
	}
}

func handleIngest(indexer *index.Service, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := index.IngestRequest{}
		if err := c.ShouldBindJSON(&request); err != nil {
			logger.Warn("could not extract expected params from ingest request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusUnprocessableEntity, []string{"failed to extract request body parameters"})
			return
		}

		if err := validator.Validate(request); err != nil {
			logger.Warn("could not validate ingest request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusNotAcceptable, []string{err.Error()})
			return
		}

		result, err := indexer.Ingest(c.Request.Context(), request)
		if err != nil {
			logger.Warn("could not ingest resource", "err", err.Error(), "resource_id", request.ID)
			c.Abort()
			writeResponse(c, nil, resourceErrorStatus(err), []string{err.Error()})
			return
		}

		writeResponse(c, IngestResponse{
			Resource:        result.Resource,
			FirstCanvasID:   result.FirstCanvasID,
			FirstCanvasJSON: result.FirstCanvasJSON,
		}, http.StatusCreated, nil)
	}
}

func handleGetResource(indexer *index.Service, logger logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		resource, err := indexer.Get(c.Param(paramID))
		if err != nil {
			logger.Warn("could not get resource", "err", err.Error(), "resource_id", c.Param(paramID))
			c.Abort()
			writeResponse(c, nil, resourceErrorStatus(err), []string{err.Error()})
			return
		}

		writeResponse(c, resource, http.StatusOK, nil)
	}
}

func handleUpdate(indexer *index.Service, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := index.UpdateRequest{}
		if err := c.ShouldBindJSON(&request); err != nil {
			logger.Warn("could not extract expected params from update request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusUnprocessableEntity, []string{"failed to extract request body parameters"})
			return
		}

		if err := validator.Validate(request); err != nil {
			logger.Warn("could not validate update request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusNotAcceptable, []string{err.Error()})
			return
		}

		resource, err := indexer.Update(c.Request.Context(), c.Param(paramID), request)
		if err != nil {
			logger.Warn("could not update resource", "err", err.Error(), "resource_id", c.Param(paramID))
			c.Abort()
			writeResponse(c, nil, resourceErrorStatus(err), []string{err.Error()})
			return
		}

		writeResponse(c, resource, http.StatusOK, nil)
	}
}

func handleDelete(indexer *index.Service, logger logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := indexer.Delete(c.Request.Context(), c.Param(paramID)); err != nil {
			logger.Warn("could not delete resource", "err", err.Error(), "resource_id", c.Param(paramID))
			c.Abort()
			writeResponse(c, nil, resourceErrorStatus(err), []string{err.Error()})
			return
		}

		writeResponse(c, nil, http.StatusNoContent, nil)
	}
}

func handleContexts(indexer *index.Service, logger logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		contexts, err := indexer.Contexts()
		if err != nil {
			logger.Error("could not list contexts", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusInternalServerError, []string{err.Error()})
			return
		}
		if contexts == nil {
			contexts = []kvdb.Context{}
		}

		writeResponse(c, contexts, http.StatusOK, nil)
	}
}

func handleIndexables(indexer *index.Service, logger logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := IndexablesRequest{}
		if err := c.ShouldBindQuery(&request); err != nil {
			logger.Warn("could not extract expected params from indexables request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusUnprocessableEntity, []string{"failed to extract request query parameters"})
			return
		}

		records, err := indexer.Records(c.Request.Context(), index.RecordFilter{
			ResourceID: request.ResourceID,
			ContentID:  request.ContentID,
			Type:       request.Type,
			Subtype:    request.Subtype,
		})
		if err != nil {
			logger.Error("could not list records", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusInternalServerError, []string{err.Error()})
			return
		}
		if records == nil {
			records = []searchdb.Record{}
		}

		writeResponse(c, records, http.StatusOK, nil)
	}
}

// handleModel answers 201 when every record was stored, 206 when only some
// were and 400 when none were.
func handleModel(indexer *index.Service, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := index.ModelRequest{}
		if err := c.ShouldBindJSON(&request); err != nil {
			logger.Warn("could not extract expected params from model request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusUnprocessableEntity, []string{"failed to extract request body parameters"})
			return
		}

		if err := validator.Validate(request); err != nil {
			logger.Warn("could not validate model request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusNotAcceptable, []string{err.Error()})
			return
		}

		result, err := indexer.IngestModel(c.Request.Context(), request)
		switch {
		case errors.Is(err, index.ErrNoValidRecords):
			c.Abort()
			writeResponse(c, result, http.StatusBadRequest, []string{err.Error()})
			return
		case errors.Is(err, index.ErrNothingToIndex), errors.Is(err, flatten.ErrUnknownFormat):
			c.Abort()
			writeResponse(c, nil, http.StatusBadRequest, []string{err.Error()})
			return
		case err != nil:
			logger.Error("could not ingest model", "err", err.Error(), "resource_id", request.ResourceID)
			c.Abort()
			writeResponse(c, nil, http.StatusInternalServerError, []string{err.Error()})
			return
		}

		if result.Partial() {
			writeResponse(c, result, http.StatusPartialContent, nil)
			return
		}
		writeResponse(c, result, http.StatusCreated, nil)
	}
}
