package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// ContentType 标识可被互动的内容种类。
type ContentType string

const (
	ContentArticle    ContentType = "article"
	ContentVideo      ContentType = "video"
	ContentBook       ContentType = "book"
	ContentTool       ContentType = "tool"
	ContentPot        ContentType = "pot"
	ContentAccessory  ContentType = "accessory"
	ContentSuggestion ContentType = "suggestion"
	ContentProduct    ContentType = "product"
)

var contentTypes = []ContentType{
	ContentArticle,
	ContentVideo,
	ContentBook,
	ContentTool,
	ContentPot,
	ContentAccessory,
	ContentSuggestion,
	ContentProduct,
}

// ParseContentType 校验并规范化内容类型。
func ParseContentType(raw string) (ContentType, error) {
	normalized := ContentType(strings.ToLower(strings.TrimSpace(raw)))
	for _, candidate := range contentTypes {
		if candidate == normalized {
			return candidate, nil
		}
	}
	return "", newValidationError("content_type", "unsupported content type")
}

// Target 指向一条具体内容。
type Target struct {
	Type ContentType
	ID   uint
}

// NewTarget 校验请求中的内容类型与 ID。
func NewTarget(rawType string, rawID int64) (Target, error) {
	contentType, err := ParseContentType(rawType)
	if err != nil {
		return Target{}, err
	}
	if rawID <= 0 {
		return Target{}, newValidationError("content_id", "must be a positive integer")
	}
	return Target{Type: contentType, ID: uint(rawID)}, nil
}

func (t Target) String() string {
	return fmt.Sprintf("%s#%d", t.Type, t.ID)
}

// ContentStore 封装一张物理内容表上的计数列读写。只允许写 views/likes/rating 三列。
type ContentStore interface {
	Table() string
	IncrementViews(ctx context.Context, gdb *gorm.DB, id uint) (bool, error)
	Views(ctx context.Context, gdb *gorm.DB, id uint) (int64, error)
	SetLikes(ctx context.Context, gdb *gorm.DB, id uint, likes int64) error
	SetRating(ctx context.Context, gdb *gorm.DB, id uint, rating float64) error
	Exists(ctx context.Context, gdb *gorm.DB, id uint) (bool, error)
	IsPublished(ctx context.Context, gdb *gorm.DB, id uint) (bool, error)
	Published(gdb *gorm.DB) *gorm.DB
}

type tableStore struct {
	table           string
	statusColumn    string
	publishedStatus string
}

func (s tableStore) Table() string {
	return s.table
}

func (s tableStore) live(ctx context.Context, gdb *gorm.DB) *gorm.DB {
	return gdb.WithContext(ctx).Table(s.table).Where("deleted_at IS NULL")
}

func (s tableStore) IncrementViews(ctx context.Context, gdb *gorm.DB, id uint) (bool, error) {
	result := s.live(ctx, gdb).
		Where("id = ?", id).
		UpdateColumn("views", gorm.Expr("views + ?", 1))
	if result.Error != nil {
		return false, fmt.Errorf("increment %s views: %w", s.table, result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (s tableStore) Views(ctx context.Context, gdb *gorm.DB, id uint) (int64, error) {
	var views int64
	row := s.live(ctx, gdb).Select("views").Where("id = ?", id).Row()
	if err := row.Scan(&views); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrContentNotFound
		}
		return 0, fmt.Errorf("load %s views: %w", s.table, err)
	}
	return views, nil
}

func (s tableStore) SetLikes(ctx context.Context, gdb *gorm.DB, id uint, likes int64) error {
	return gdb.WithContext(ctx).Table(s.table).Where("id = ?", id).UpdateColumn("likes", likes).Error
}

func (s tableStore) SetRating(ctx context.Context, gdb *gorm.DB, id uint, rating float64) error {
	return gdb.WithContext(ctx).Table(s.table).Where("id = ?", id).UpdateColumn("rating", rating).Error
}

func (s tableStore) Exists(ctx context.Context, gdb *gorm.DB, id uint) (bool, error) {
	var count int64
	if err := s.live(ctx, gdb).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("check %s existence: %w", s.table, err)
	}
	return count > 0, nil
}

func (s tableStore) IsPublished(ctx context.Context, gdb *gorm.DB, id uint) (bool, error) {
	var count int64
	if err := s.Published(gdb.WithContext(ctx)).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("check %s status: %w", s.table, err)
	}
	return count > 0, nil
}

func (s tableStore) Published(gdb *gorm.DB) *gorm.DB {
	return gdb.Table(s.table).
		Where("deleted_at IS NULL").
		Where(s.statusColumn+" = ?", s.publishedStatus)
}

// ContentRegistry 将内容类型映射到物理表。书籍、工具、花盆、配件、推荐共用 products 表。
type ContentRegistry struct {
	stores map[ContentType]ContentStore
	tables []ContentStore
}

// NewContentRegistry 返回默认映射。
func NewContentRegistry() *ContentRegistry {
	articles := tableStore{table: "articles", statusColumn: "status", publishedStatus: "published"}
	videos := tableStore{table: "videos", statusColumn: "status", publishedStatus: "published"}
	products := tableStore{table: "products", statusColumn: "status", publishedStatus: "active"}

	return &ContentRegistry{
		stores: map[ContentType]ContentStore{
			ContentArticle:    articles,
			ContentVideo:      videos,
			ContentBook:       products,
			ContentTool:       products,
			ContentPot:        products,
			ContentAccessory:  products,
			ContentSuggestion: products,
			ContentProduct:    products,
		},
		tables: []ContentStore{articles, videos, products},
	}
}

// Store 返回内容类型对应的表。
func (r *ContentRegistry) Store(contentType ContentType) (ContentStore, error) {
	store, ok := r.stores[contentType]
	if !ok {
		return nil, newValidationError("content_type", "unsupported content type")
	}
	return store, nil
}

// Tables 返回去重后的全部物理表。
func (r *ContentRegistry) Tables() []ContentStore {
	return r.tables
}
