// Common test helpers
package handlers

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

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
	"github.com/stretchr/testify/require"
)

const routePrefix = "/api/search"

type testCase struct {
	name             string
	requestHeaders   map[string]string
	requestBody      map[string]any
	queryParams      map[string]string
	expectedStatus   int
	expectedResponse *response
}

type testServer struct {
	router  *gin.Engine
	indexer *index.Service
	records *searchdb.BleveDB
}

func newTestLogger() logger.Logger {

	opts := &slog.HandlerOptions{
		Level:     slog.LevelDebug,
		AddSource: true,
	}
	handler := slog.NewJSONHandler(os.Stderr, opts)
	return slog.New(handler)
}

func setupTestServer(t *testing.T, assert *require.Assertions) *testServer {

	t.Setenv("ENV", "test")

	cfg, err := config.Load("")
	assert.NoError(err, "could not load config")

	testLogger := newTestLogger()

	records, err := searchdb.NewInMemory(testLogger, cfg.GetMaxCandidates())
	assert.NoError(err, "could not create search database")

	kvDB, err := kvdb.Open(testLogger, filepath.Join(t.TempDir(), "resources.db"))
	assert.NoError(err, "could not create kv database")

	validator, err := validation.New(testLogger)
	assert.NoError(err, "could not create validator")

	table := languages.DefaultTable()
	store := kvdb.NewStore(kvDB)
	indexer := index.New(testLogger, records, store, flatten.New(flatten.Config{DefaultLanguage: cfg.GetDefaultLanguage()}), table)
	searcher := search.New(testLogger, records, store, search.Options{
		TrigramThreshold:     cfg.GetTrigramThreshold(),
		TrigramWordThreshold: cfg.GetTrigramWordThreshold(),
	})
	parser := query.NewParser(query.Options{
		NumberOfFacets:  cfg.GetNumberOfFacets(),
		PageSize:        cfg.GetPageSize(),
		FulltextScripts: cfg.GetFulltextScripts(),
	}, table)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		if siteURN := c.GetHeader(testHeaderSiteURN); siteURN != "" {
			c.Set(ContextKeySiteURN, siteURN)
		}
		c.Next()
	})

	group := router.Group(routePrefix)
	SetupIndex(group, testLogger, indexer, validator)
	SetupSearch(group, testLogger, searcher, parser, validator)

	t.Cleanup(func() {
		assert.NoError(records.Close(), "could not close search database")
		assert.NoError(kvDB.Close(), "could not close kv database")
	})

	return &testServer{router: router, indexer: indexer, records: records}
}

func makeTestHTTPRequest(router *gin.Engine, assert *require.Assertions, method string, endpoint string, headers map[string]string, requestBodyMap map[string]interface{}, queryParams map[string]string) *httptest.ResponseRecorder {

	var err error
	w := httptest.NewRecorder()

	if len(queryParams) > 0 {
		endpoint = endpoint + "?"
		for key, value := range queryParams {
			if endpoint[len(endpoint)-1] != '?' {
				endpoint = endpoint + "&"
			}
			endpoint = endpoint + key + "=" + value
		}
	}
	var jsonBody []byte
	var req *http.Request
	if requestBodyMap != nil {
		jsonBody, err = json.Marshal(requestBodyMap)
		assert.NoError(err)
	}

	slog.Info("Making test request", "method", method, "endpoint", endpoint, "headers", headers, "body", string(jsonBody))

	if len(jsonBody) > 0 {
		req, err = http.NewRequest(method, endpoint, bytes.NewBuffer(jsonBody))
	} else {
		req, err = http.NewRequest(method, endpoint, nil)
	}
	assert.NoError(err)

	for key, value := range headers {
		req.Header.Set(key, value)
	}
	router.ServeHTTP(w, req)

	return w
}

func decodeResponse(assert *require.Assertions, w *httptest.ResponseRecorder, into any) {
	assert.NoError(json.Unmarshal(w.Body.Bytes(), into), "response gotten was %s", w.Body.String())
}

// ingestFixture posts a resource and fails the test unless it is created.
func ingestFixture(s *testServer, assert *require.Assertions, id string, resource map[string]any, contexts ...map[string]any) {
	body := map[string]any{"id": id, "resource": resource}
	if len(contexts) > 0 {
		body["contexts"] = contexts
	}
	w := makeTestHTTPRequest(s.router, assert, http.MethodPost, routePrefix+"/iiif", defaultTestRequestHeaders, body, nil)
	assert.Equal(http.StatusCreated, w.Code, "response gotten was %s", w.Body.String())
}
