// Package repository 定义数据访问层接口
package repository

import (
	"context"
	"errors"
)

// ErrNotFound 条件更新未命中任何行（记录已被删除或条件已变化）
var ErrNotFound = errors.New("record not found")

// TxKey 事务上下文键类型
type TxKey struct{}

// Transactor 事务管理接口
type Transactor interface {
	// WithTransaction 在事务中执行操作，已在事务内时复用外层事务
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Pagination 分页参数（页码从 1 开始）
type Pagination struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// NewPagination 规范化分页参数，越界值回落到默认值或上限
func NewPagination(page, pageSize int) Pagination {
	p := Pagination{Page: max(page, 1), PageSize: pageSize}
	switch {
	case p.PageSize < 1:
		p.PageSize = defaultPageSize
	case p.PageSize > maxPageSize:
		p.PageSize = maxPageSize
	}
	return p
}

func (p Pagination) Offset() int { return (p.Page - 1) * p.PageSize }

func (p Pagination) Limit() int { return p.PageSize }

// PagedResult 分页结果
type PagedResult[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// NewPagedResult 创建分页结果
func NewPagedResult[T any](items []T, total int64, p Pagination) *PagedResult[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if p.PageSize > 0 {
		pages = int((total + int64(p.PageSize) - 1) / int64(p.PageSize))
	}
	return &PagedResult[T]{Items: items, Total: total, Page: p.Page, PageSize: p.PageSize, TotalPages: pages}
}
