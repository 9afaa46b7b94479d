// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"z-novel-plan-api/internal/domain/repository"
)

// BindProjectID 从 URI 绑定项目 ID
func BindProjectID(c *gin.Context) string {
	return strings.TrimSpace(c.Param("pid"))
}

// BindJobID 从 URI 绑定任务 ID
func BindJobID(c *gin.Context) string {
	return c.Param("jid")
}

// BindVersionID 从 URI 绑定版本 ID
func BindVersionID(c *gin.Context) string {
	return c.Param("vid")
}

// BindNumber 从 URI 绑定正整数序号（卷号、章节号）
func BindNumber(c *gin.Context, name string) (int, error) {
	raw := c.Param(name)
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", name, raw)
	}
	return n, nil
}

// BindCount 绑定删除数量：优先取 count 查询参数，其次取请求体 {"count": n}，缺省为 1
func BindCount(c *gin.Context) (int, error) {
	if raw := c.Query("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return 0, fmt.Errorf("count must be an integer, got %q", raw)
		}
		return n, nil
	}
	var body struct {
		Count *int `json:"count"`
	}
	if err := BindOptionalJSON(c, &body); err != nil {
		return 0, fmt.Errorf("invalid request body: %w", err)
	}
	if body.Count == nil {
		return 1, nil
	}
	return *body.Count, nil
}

// BindPagination 绑定 page、page_size 查询参数，缺省为第 1 页每页 20 条，page_size 上限 100
func BindPagination(c *gin.Context) (repository.Pagination, error) {
	page, err := queryInt(c, "page", 1)
	if err != nil {
		return repository.Pagination{}, err
	}
	size, err := queryInt(c, "page_size", 0)
	if err != nil {
		return repository.Pagination{}, err
	}
	return repository.NewPagination(page, size), nil
}

func queryInt(c *gin.Context, name string, def int) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", name, raw)
	}
	return n, nil
}

// BindOptionalJSON 绑定请求体；空请求体视为全部字段缺省
func BindOptionalJSON(c *gin.Context, obj any) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
