package dto

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countContext(target, body string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(http.MethodDelete, target, nil)
	} else {
		req = httptest.NewRequest(http.MethodDelete, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	c.Request = req
	return c
}

func TestBindCount(t *testing.T) {
	n, err := BindCount(countContext("/latest", ""))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = BindCount(countContext("/latest?count=3", `{"count":7}`))
	require.NoError(t, err)
	assert.Equal(t, 3, n, "query wins over body")

	n, err = BindCount(countContext("/latest", `{"count":2}`))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = BindCount(countContext("/latest", `{}`))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = BindCount(countContext("/latest?count=x", ""))
	assert.Error(t, err)
	_, err = BindCount(countContext("/latest", `{"count":"x"}`))
	assert.Error(t, err)
}

func TestBindPagination(t *testing.T) {
	p, err := BindPagination(countContext("/jobs", ""))
	require.NoError(t, err)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 20, p.PageSize)

	p, err = BindPagination(countContext("/jobs?page=3&page_size=500", ""))
	require.NoError(t, err)
	assert.Equal(t, 3, p.Page)
	assert.Equal(t, 100, p.PageSize)
	assert.Equal(t, 200, p.Offset())

	_, err = BindPagination(countContext("/jobs?page_size=ten", ""))
	assert.Error(t, err)
}
