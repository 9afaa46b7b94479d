package milvus

import (
	"testing"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartitionName(t *testing.T) {
	assert.Equal(t, "proj_8c1e_4f2a_9b", PartitionName("8c1e-4f2a-9b"))
	assert.Equal(t, "proj_novel_01", PartitionName("novel_01"))
}

func TestStorySegmentsSchema(t *testing.T) {
	schema := StorySegmentsSchema()
	require.Len(t, schema.Fields, 7)

	byName := map[string]*entity.Field{}
	for _, f := range schema.Fields {
		byName[f.Name] = f
	}
	assert.True(t, byName["id"].PrimaryKey)
	assert.Equal(t, entity.FieldTypeInt64, byName["chapter_number"].DataType)
	assert.Equal(t, "1024", byName["vector"].TypeParams["dim"])
}
