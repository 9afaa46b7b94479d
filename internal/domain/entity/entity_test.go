package entity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 测试 FlexJSON 仅接受对象或数组
func TestFlexJSON_UnmarshalRejectsScalars(t *testing.T) {
	var holder struct {
		Events FlexJSON `json:"events"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"events":[{"name":"初遇"}]}`), &holder))
	assert.JSONEq(t, `[{"name":"初遇"}]`, string(holder.Events))

	require.NoError(t, json.Unmarshal([]byte(`{"events":{"a":1}}`), &holder))
	assert.JSONEq(t, `{"a":1}`, string(holder.Events))

	require.NoError(t, json.Unmarshal([]byte(`{"events":null}`), &holder))
	assert.True(t, holder.Events.IsEmpty())

	for _, bad := range []string{`{"events":"text"}`, `{"events":42}`, `{"events":true}`} {
		err := json.Unmarshal([]byte(bad), &holder)
		assert.ErrorIs(t, err, ErrFlexJSONShape, bad)
	}
}

// 测试 FlexJSON 数据库读写
func TestFlexJSON_ValueAndScan(t *testing.T) {
	f := MustFlexJSON([]string{"背叛", "和解"})
	v, err := f.Value()
	require.NoError(t, err)
	assert.Equal(t, `["背叛","和解"]`, v)

	var scanned FlexJSON
	require.NoError(t, scanned.Scan([]byte(`{"k":"v"}`)))
	var m map[string]string
	require.NoError(t, scanned.Decode(&m))
	assert.Equal(t, "v", m["k"])

	assert.Error(t, scanned.Scan(`"scalar"`))

	empty, err := FlexJSON(nil).Value()
	require.NoError(t, err)
	assert.Nil(t, empty)

	_, err = NewFlexJSON("just a string")
	assert.ErrorIs(t, err, ErrFlexJSONShape)
}

// 测试分卷进度刷新
func TestPartOutline_RefreshProgress(t *testing.T) {
	p := NewPartOutline("p1", 1, 1, 4)
	p.RefreshProgress(1)
	assert.Equal(t, 25, p.Progress)
	assert.Equal(t, PartStatusPending, p.GenerationStatus)

	p.RefreshProgress(4)
	assert.Equal(t, 100, p.Progress)
	assert.Equal(t, PartStatusCompleted, p.GenerationStatus)

	p.RefreshProgress(2)
	assert.Equal(t, 50, p.Progress)
	assert.Equal(t, PartStatusPending, p.GenerationStatus, "区间被截断后不应保持 completed")

	assert.True(t, p.Contains(4))
	assert.False(t, p.Contains(5))
}

// 测试版本选定与字数统计
func TestChapter_SelectAndClear(t *testing.T) {
	c := NewChapter("p1", 3)
	v := NewChapterVersion("c1", "v1", "openai", "第一章 风起\n少年 出门。", nil)
	v.ID = "v-1"

	c.Select(v)
	require.True(t, c.HasSelection())
	assert.Equal(t, "v-1", *c.SelectedVersionID)
	assert.Equal(t, 10, c.WordCount)

	c.ClearSelection()
	assert.False(t, c.HasSelection())
	assert.Zero(t, c.WordCount)
}

func TestNewChapterEvaluation_Validation(t *testing.T) {
	_, err := NewChapterEvaluation("c1", nil, "maybe", "", 50)
	assert.Error(t, err)

	_, err = NewChapterEvaluation("c1", nil, DecisionAccept, "", 101)
	assert.Error(t, err)

	e, err := NewChapterEvaluation("c1", nil, DecisionRevise, "节奏偏慢", 72.5)
	require.NoError(t, err)
	assert.Equal(t, DecisionRevise, e.Decision)
}
