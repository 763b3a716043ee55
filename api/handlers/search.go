package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/iiifsearch/logger"
	"github.com/meghashyamc/iiifsearch/query"
	"github.com/meghashyamc/iiifsearch/services/search"
	"github.com/meghashyamc/iiifsearch/validation"
)

// ContextKeySiteURN is the gin context key holding the site a request is
// limited to.
const ContextKeySiteURN = "site_urn"

const paramPage = "page"

type SearchResponse struct {
	Pagination Pagination      `json:"pagination"`
	Results    []search.Result `json:"results"`
	Facets     search.Facets   `json:"facets"`
}

type AutocompleteResponse struct {
	Results []search.Suggestion `json:"results"`
}

func SetupSearch(router gin.IRouter, logger logger.Logger, searcher *search.Service, parser *query.Parser, validator *validation.Validator) {
	router.POST("/search", handleSearch(searcher, parser, logger, validator))
	router.POST("/facets", handleFacets(searcher, parser, logger, validator))
	router.POST("/autocomplete", handleAutocomplete(searcher, parser, logger, validator))

}

// planRequest decodes and validates the body and plans it for the site of
// the request. It writes the error response itself and returns nil then.
func planRequest(c *gin.Context, parser *query.Parser, logger logger.Logger, validator *validation.Validator) *query.Plan {
	var body []byte
	if c.Request.Body != nil {
		var err error
		if body, err = c.GetRawData(); err != nil {
			logger.Warn("could not read search request body", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusUnprocessableEntity, []string{"failed to read request body"})
			return nil
		}
	}

	request, err := query.DecodeRequest(body)
	if err != nil {
		logger.Warn("could not decode search request", "err", err.Error())
		c.Abort()
		writeResponse(c, nil, http.StatusBadRequest, []string{err.Error()})
		return nil
	}

	if err := validator.Validate(request); err != nil {
		logger.Warn("could not validate search request", "err", err.Error())
		c.Abort()
		writeResponse(c, nil, http.StatusNotAcceptable, []string{err.Error()})
		return nil
	}

	return parser.Plan(request, c.GetString(ContextKeySiteURN))
}

func handleSearch(searcher *search.Service, parser *query.Parser, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		page := 1
		if value := c.Query(paramPage); value != "" {
			var err error
			if page, err = strconv.Atoi(value); err != nil {
				logger.Warn("invalid page", "page", value)
				c.Abort()
				writeResponse(c, nil, http.StatusNotFound, []string{search.ErrInvalidPage.Error()})
				return
			}
		}

		plan := planRequest(c, parser, logger, validator)
		if plan == nil {
			return
		}

		result, err := searcher.Search(c.Request.Context(), plan, page)
		if err != nil {
			if errors.Is(err, search.ErrInvalidPage) {
				logger.Warn("invalid page", "page", page)
				c.Abort()
				writeResponse(c, nil, http.StatusNotFound, []string{err.Error()})
				return
			}
			logger.Error("search failed", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusInternalServerError, []string{err.Error()})
			return
		}

		searchResponse := SearchResponse{
			Pagination: calculatePagination(c, result.Page, result.PageSize, result.TotalPages, result.Total),
			Results:    result.Results,
			Facets:     result.Facets,
		}
		if searchResponse.Results == nil {
			searchResponse.Results = []search.Result{}
		}
		if searchResponse.Facets == nil {
			searchResponse.Facets = search.Facets{}
		}

		c.JSON(http.StatusOK, searchResponse)
	}
}

func handleFacets(searcher *search.Service, parser *query.Parser, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		plan := planRequest(c, parser, logger, validator)
		if plan == nil {
			return
		}

		fields, err := searcher.FacetFields(c.Request.Context(), plan)
		if err != nil {
			logger.Error("could not list facet fields", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusInternalServerError, []string{err.Error()})
			return
		}

		c.JSON(http.StatusOK, fields)
	}
}

func handleAutocomplete(searcher *search.Service, parser *query.Parser, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		plan := planRequest(c, parser, logger, validator)
		if plan == nil {
			return
		}

		suggestions, err := searcher.Autocomplete(c.Request.Context(), plan)
		if err != nil {
			logger.Error("autocomplete failed", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusInternalServerError, []string{err.Error()})
			return
		}
		if suggestions == nil {
			suggestions = []search.Suggestion{}
		}

		c.JSON(http.StatusOK, AutocompleteResponse{Results: suggestions})
	}
}
