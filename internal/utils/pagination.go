package utils

import (
	"strconv" // String conversion

	"github.com/gin-gonic/gin" // Gin web framework
)

// Pagination bounds
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page is a parsed page/page_size pair
type Page struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// Offset of the first row of the page
func (p Page) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// TotalPages for total rows
func (p Page) TotalPages(total int64) int {
	return (int(total) + p.PageSize - 1) / p.PageSize
}

// ParsePage reads page and page_size from the query, falling back to defaults on bad input
func ParsePage(c *gin.Context) Page {
	p := Page{Page: 1, PageSize: DefaultPageSize}
	if v, err := strconv.Atoi(c.Query("page")); err == nil && v > 0 {
		p.Page = v // Set page if valid
	}
	if v, err := strconv.Atoi(c.Query("page_size")); err == nil && v > 0 && v <= MaxPageSize {
		p.PageSize = v // Set page size if valid
	}
	return p
}
