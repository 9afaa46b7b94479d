package milvus

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"z-novel-plan-api/internal/config"
)

func TestClient_CollectionName(t *testing.T) {
	c := &Client{config: &config.MilvusConfig{}}
	assert.Equal(t, "story_segments", c.CollectionName(CollectionStorySegments))

	c.config.CollectionPrefix = "plan"
	assert.Equal(t, "plan_story_segments", c.CollectionName(CollectionStorySegments))
}
