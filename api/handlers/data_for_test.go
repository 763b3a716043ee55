package handlers

import (
	"fmt"
	"net/http"
)

var defaultTestRequestHeaders = map[string]string{"Content-Type": "application/json"}

const testHeaderSiteURN = "X-Test-Site-Urn"

func manifestResource(name string, author string, canvases int) map[string]any {
	items := make([]any, 0, canvases)
	for n := 1; n <= canvases; n++ {
		items = append(items, map[string]any{
			"id":    fmt.Sprintf("https://example.org/iiif/%s/canvas/%d", name, n),
			"type":  "Canvas",
			"label": map[string]any{"none": []any{fmt.Sprintf("p. %d", n)}},
		})
	}
	return map[string]any{
		"id":    fmt.Sprintf("https://example.org/iiif/%s/manifest", name),
		"type":  "Manifest",
		"label": map[string]any{"en": []any{"Letters of " + author}},
		"metadata": []any{
			map[string]any{
				"label": map[string]any{"en": []any{"Author"}},
				"value": map[string]any{"en": []any{author}},
			},
		},
		"items": items,
	}
}

func ocrResource(words ...string) map[string]any {
	text := make([]any, 0, len(words))
	for _, word := range words {
		text = append(text, map[string]any{"value": word})
	}
	return map[string]any{
		"paragraph": []any{map[string]any{"properties": map[string]any{"lines": []any{
			map[string]any{"properties": map[string]any{"text": text}},
		}}}},
	}
}

func captureModelResource(target string, values ...string) map[string]any {
	regions := make([]any, 0, len(values))
	for n, value := range values {
		regions = append(regions, map[string]any{
			"id":    fmt.Sprintf("r%d", n),
			"type":  "text-field",
			"label": fmt.Sprintf("Field %d", n),
			"value": value,
		})
	}
	return map[string]any{
		"document": map[string]any{
			"type":       "entity",
			"properties": map[string]any{"region": regions},
		},
		"target": []any{map[string]any{"id": target, "type": "Canvas"}},
	}
}

var ingestHandlerTestCases = []testCase{
	{
		name:           "NoRequestBody",
		requestHeaders: defaultTestRequestHeaders,
		requestBody:    nil,
		expectedStatus: http.StatusUnprocessableEntity,
	},
	{
		name:           "EmptyID",
		requestHeaders: defaultTestRequestHeaders,
		requestBody:    map[string]any{"id": "   ", "resource": manifestResource("blank", "Nobody", 0)},
		expectedStatus: http.StatusNotAcceptable,
	},
	{
		name:           "Success",
		requestHeaders: defaultTestRequestHeaders,
		requestBody:    map[string]any{"id": "urn:madoc:manifest:1", "resource": manifestResource("book1", "Christoph Mietzsching", 2)},
		expectedStatus: http.StatusCreated,
	},
	{
		name:           "Duplicate",
		requestHeaders: defaultTestRequestHeaders,
		requestBody:    map[string]any{"id": "urn:madoc:manifest:1", "resource": manifestResource("book1", "Christoph Mietzsching", 2)},
		expectedStatus: http.StatusConflict,
	},
}

var modelHandlerTestCases = []testCase{
	{
		name:           "NoRequestBody",
		requestHeaders: defaultTestRequestHeaders,
		requestBody:    nil,
		expectedStatus: http.StatusUnprocessableEntity,
	},
	{
		name:           "MissingResourceID",
		requestHeaders: defaultTestRequestHeaders,
		requestBody:    map[string]any{"resource": ocrResource("Hello")},
		expectedStatus: http.StatusNotAcceptable,
	},
	{
		name:           "UnknownFormat",
		requestHeaders: defaultTestRequestHeaders,
		requestBody:    map[string]any{"resource_id": "urn:madoc:manifest:1", "resource": map[string]any{"foo": "bar"}},
		expectedStatus: http.StatusBadRequest,
	},
	{
		name:           "OCR",
		requestHeaders: defaultTestRequestHeaders,
		requestBody:    map[string]any{"resource_id": "urn:madoc:manifest:1", "content_id": "ocr-1", "resource": ocrResource("Dear", "Johann")},
		expectedStatus: http.StatusCreated,
	},
	{
		name:           "PartiallyValid",
		requestHeaders: defaultTestRequestHeaders,
		requestBody:    map[string]any{"resource_id": "urn:madoc:manifest:1", "content_id": "model-1", "resource": captureModelResource("urn:madoc:manifest:1", "A heading", "   ")},
		expectedStatus: http.StatusPartialContent,
	},
	{
		name:           "UnknownResource",
		requestHeaders: defaultTestRequestHeaders,
		requestBody:    map[string]any{"resource_id": "urn:madoc:manifest:404", "content_id": "model-1", "resource": captureModelResource("urn:madoc:manifest:404", "A heading")},
		expectedStatus: http.StatusBadRequest,
	},
}
