package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandleIngest(t *testing.T) {
	assert := require.New(t)
	server := setupTestServer(t, assert)

	for _, testCase := range ingestHandlerTestCases {

		t.Run(testCase.name, func(t *testing.T) {
			assert := require.New(t)
			w := makeTestHTTPRequest(server.router, assert, http.MethodPost, routePrefix+"/iiif", testCase.requestHeaders, testCase.requestBody, testCase.queryParams)
			assert.Equal(testCase.expectedStatus, w.Code, "response gotten was %s", w.Body.String())

			if testCase.expectedStatus != http.StatusCreated {
				return
			}
			var body struct {
				Data map[string]any `json:"data"`
			}
			decodeResponse(assert, w, &body)
			assert.Equal("urn:madoc:manifest:1", body.Data["madoc_id"])
			assert.Equal("Manifest", body.Data["type"])
			assert.Equal("https://example.org/iiif/book1/canvas/1", body.Data["first_canvas_id"])
			assert.NotNil(body.Data["first_canvas_json"])
		})
	}
}

func TestHandleIngestCascade(t *testing.T) {
	assert := require.New(t)
	server := setupTestServer(t, assert)

	body := map[string]any{
		"id":       "urn:madoc:manifest:1",
		"resource": manifestResource("book1", "Christoph Mietzsching", 2),
		"cascade":  true,
		"contexts": []map[string]any{{"id": "urn:madoc:site:1", "type": "Site"}},
	}
	w := makeTestHTTPRequest(server.router, assert, http.MethodPost, routePrefix+"/iiif", defaultTestRequestHeaders, body, nil)
	assert.Equal(http.StatusCreated, w.Code, "response gotten was %s", w.Body.String())

	w = makeTestHTTPRequest(server.router, assert, http.MethodGet, routePrefix+"/iiif/urn:madoc:manifest:1:canvas:0", nil, nil, nil)
	assert.Equal(http.StatusOK, w.Code, "response gotten was %s", w.Body.String())

	var child struct {
		Data struct {
			Type     string `json:"type"`
			Contexts []struct {
				ID   string `json:"id"`
				Type string `json:"type"`
			} `json:"contexts"`
		} `json:"data"`
	}
	decodeResponse(assert, w, &child)
	assert.Equal("Canvas", child.Data.Type)

	contextIDs := make([]string, 0, len(child.Data.Contexts))
	for _, context := range child.Data.Contexts {
		contextIDs = append(contextIDs, context.ID)
	}
	assert.Contains(contextIDs, "urn:madoc:site:1")
	assert.Contains(contextIDs, "urn:madoc:manifest:1")
	assert.Contains(contextIDs, "https://example.org/iiif/book1/manifest")

	w = makeTestHTTPRequest(server.router, assert, http.MethodGet, routePrefix+"/contexts", nil, nil, nil)
	assert.Equal(http.StatusOK, w.Code)
	var contexts struct {
		Data []map[string]any `json:"data"`
	}
	decodeResponse(assert, w, &contexts)
	assert.NotEmpty(contexts.Data)
}

func TestHandleResource(t *testing.T) {
	assert := require.New(t)
	server := setupTestServer(t, assert)
	ingestFixture(server, assert, "urn:madoc:manifest:1", manifestResource("book1", "Christoph Mietzsching", 1))

	testCases := []struct {
		name           string
		method         string
		id             string
		requestBody    map[string]any
		expectedStatus int
	}{
		{name: "Get", method: http.MethodGet, id: "urn:madoc:manifest:1", expectedStatus: http.StatusOK},
		{name: "GetMissing", method: http.MethodGet, id: "urn:madoc:manifest:404", expectedStatus: http.StatusNotFound},
		{name: "UpdateNoBody", method: http.MethodPut, id: "urn:madoc:manifest:1", expectedStatus: http.StatusUnprocessableEntity},
		{
			name:           "UpdateMissing",
			method:         http.MethodPatch,
			id:             "urn:madoc:manifest:404",
			requestBody:    map[string]any{"madoc_thumbnail": "https://example.org/thumb.jpg"},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "Update",
			method:         http.MethodPatch,
			id:             "urn:madoc:manifest:1",
			requestBody:    map[string]any{"madoc_thumbnail": "https://example.org/thumb.jpg", "resource": manifestResource("book1", "Johann Mietzsching", 1)},
			expectedStatus: http.StatusOK,
		},
		{name: "Delete", method: http.MethodDelete, id: "urn:madoc:manifest:1", expectedStatus: http.StatusNoContent},
		{name: "DeleteAgain", method: http.MethodDelete, id: "urn:madoc:manifest:1", expectedStatus: http.StatusNotFound},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert := require.New(t)
			w := makeTestHTTPRequest(server.router, assert, testCase.method, routePrefix+"/iiif/"+testCase.id, defaultTestRequestHeaders, testCase.requestBody, nil)
			assert.Equal(testCase.expectedStatus, w.Code, "response gotten was %s", w.Body.String())
		})
	}
}

func TestHandleUpdateReplacesRecords(t *testing.T) {
	assert := require.New(t)
	server := setupTestServer(t, assert)
	ingestFixture(server, assert, "urn:madoc:manifest:1", manifestResource("book1", "Christoph Mietzsching", 1))

	body := map[string]any{"resource": manifestResource("book1", "Johann Mietzsching", 1)}
	w := makeTestHTTPRequest(server.router, assert, http.MethodPut, routePrefix+"/iiif/urn:madoc:manifest:1", defaultTestRequestHeaders, body, nil)
	assert.Equal(http.StatusOK, w.Code, "response gotten was %s", w.Body.String())

	w = makeTestHTTPRequest(server.router, assert, http.MethodGet, routePrefix+"/indexables", nil, nil,
		map[string]string{"resource_id": "urn:madoc:manifest:1", "type": "metadata", "subtype": "author"})
	assert.Equal(http.StatusOK, w.Code, "response gotten was %s", w.Body.String())

	var records struct {
		Data []struct {
			Indexable string `json:"indexable"`
		} `json:"data"`
	}
	decodeResponse(assert, w, &records)
	assert.Len(records.Data, 1)
	assert.Equal("Johann Mietzsching", records.Data[0].Indexable)
}

func TestHandleModel(t *testing.T) {
	assert := require.New(t)
	server := setupTestServer(t, assert)
	ingestFixture(server, assert, "urn:madoc:manifest:1", manifestResource("book1", "Christoph Mietzsching", 1))

	for _, testCase := range modelHandlerTestCases {

		t.Run(testCase.name, func(t *testing.T) {
			assert := require.New(t)
			w := makeTestHTTPRequest(server.router, assert, http.MethodPost, routePrefix+"/model", testCase.requestHeaders, testCase.requestBody, testCase.queryParams)
			assert.Equal(testCase.expectedStatus, w.Code, "response gotten was %s", w.Body.String())

			if testCase.expectedStatus != http.StatusPartialContent {
				return
			}
			var body struct {
				Data struct {
					Accepted []map[string]any `json:"accepted"`
					Rejected []map[string]any `json:"rejected"`
				} `json:"data"`
			}
			decodeResponse(assert, w, &body)
			assert.Len(body.Data.Accepted, 1)
			assert.Len(body.Data.Rejected, 1)
		})
	}

	w := makeTestHTTPRequest(server.router, assert, http.MethodGet, routePrefix+"/indexables", nil, nil,
		map[string]string{"resource_id": "urn:madoc:manifest:1", "content_id": "ocr-1"})
	assert.Equal(http.StatusOK, w.Code)
	var records struct {
		Data []map[string]any `json:"data"`
	}
	decodeResponse(assert, w, &records)
	assert.NotEmpty(records.Data)
}
