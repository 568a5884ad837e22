package utils

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidPin(t *testing.T) {
	for pin, want := range map[string]bool{
		"1234":    true,
		"123456":  true,
		"123":     false,
		"1234567": false,
		"12a4":    false,
		"":        false,
	} {
		assert.Equal(t, want, IsValidPin(pin), pin)
	}
}

func TestHashAndCheckPin(t *testing.T) {
	hash, err := HashPin("4321")
	require.NoError(t, err)
	assert.True(t, CheckPin(hash, "4321"))
	assert.False(t, CheckPin(hash, "1234"))
	assert.False(t, CheckPin("", "4321"))
}

func TestParsePage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		query    string
		page     int
		pageSize int
	}{
		{"", 1, DefaultPageSize},
		{"?page=3&page_size=50", 3, 50},
		{"?page=0&page_size=500", 1, DefaultPageSize},
		{"?page=abc", 1, DefaultPageSize},
	}
	for _, tt := range tests {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("GET", "/"+tt.query, nil)
		p := ParsePage(c)
		assert.Equal(t, tt.page, p.Page, tt.query)
		assert.Equal(t, tt.pageSize, p.PageSize, tt.query)
	}

	p := Page{Page: 2, PageSize: 20}
	assert.Equal(t, 20, p.Offset())
	assert.Equal(t, 3, p.TotalPages(41))
}
