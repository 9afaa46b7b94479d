// Package milvus 提供 Milvus 向量数据库访问层实现
package milvus

import (
	"strconv"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

const (
	// CollectionStorySegments 章节正文片段集合
	CollectionStorySegments = "story_segments"

	// VectorDimension 向量维度
	VectorDimension = 1024
)

func varChar(name string, maxLen int) *entity.Field {
	return &entity.Field{
		Name:       name,
		DataType:   entity.FieldTypeVarChar,
		TypeParams: map[string]string{"max_length": strconv.Itoa(maxLen)},
	}
}

// StorySegmentsSchema 章节片段 Collection Schema
func StorySegmentsSchema() *entity.Schema {
	id := varChar("id", 64)
	id.PrimaryKey = true

	return &entity.Schema{
		CollectionName: CollectionStorySegments,
		Description:    "Selected chapter versions split for semantic retrieval",
		Fields: []*entity.Field{
			id,
			{
				Name:       "vector",
				DataType:   entity.FieldTypeFloatVector,
				TypeParams: map[string]string{"dim": strconv.Itoa(VectorDimension)},
			},
			varChar("project_id", 64),
			varChar("chapter_id", 64),
			{
				Name:     "chapter_number",
				DataType: entity.FieldTypeInt64,
			},
			varChar("version_id", 64),
			varChar("text_content", 65535),
		},
	}
}

// StorySegment 章节片段数据结构
type StorySegment struct {
	ID            string    `json:"id"`
	Vector        []float32 `json:"vector"`
	ProjectID     string    `json:"project_id"`
	ChapterID     string    `json:"chapter_id"`
	ChapterNumber int64     `json:"chapter_number"`
	VersionID     string    `json:"version_id"`
	TextContent   string    `json:"text_content"`
}

// PartitionName 生成项目分区名称；Milvus 分区名只允许字母数字与下划线
func PartitionName(projectID string) string {
	return "proj_" + strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, projectID)
}
