package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type response struct {
	Data   any      `json:"data"`
	Errors []string `json:"errors"`
}

func writeResponse(c *gin.Context, data interface{}, statusCode int, errors []string) {

	if statusCode == http.StatusNoContent {
		c.JSON(statusCode, nil)
		return

	}

	response := response{
		Data:   data,
		Errors: errors,
	}

	c.JSON(statusCode, response)
}

// Pagination links to the neighbouring pages of a search. Next and Previous
// are nil on the last and first page.
type Pagination struct {
	Page         int     `json:"page"`
	PageSize     int     `json:"pageSize"`
	TotalPages   int     `json:"totalPages"`
	TotalResults int     `json:"totalResults"`
	Next         *string `json:"next"`
	Previous     *string `json:"previous"`
}

func calculatePagination(c *gin.Context, page, pageSize, totalPages, total int) Pagination {
	pagination := Pagination{
		Page:         page,
		PageSize:     pageSize,
		TotalPages:   totalPages,
		TotalResults: total,
	}
	if page < totalPages {
		next := pageLink(c, page+1)
		pagination.Next = &next
	}
	if page > 1 {
		previous := pageLink(c, page-1)
		pagination.Previous = &previous
	}
	return pagination
}

// pageLink is the request URL pointing at page. The first page is linked
// without a page parameter.
func pageLink(c *gin.Context, page int) string {
	link := *c.Request.URL
	values := link.Query()
	if page <= 1 {
		values.Del(paramPage)
	} else {
		values.Set(paramPage, strconv.Itoa(page))
	}
	link.RawQuery = values.Encode()
	if c.Request.Host != "" {
		link.Host = c.Request.Host
		link.Scheme = "http"
		if c.Request.TLS != nil {
			link.Scheme = "https"
		}
	}
	return link.String()
}
