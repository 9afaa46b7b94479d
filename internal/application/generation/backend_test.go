package generation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wfmodel "z-novel-plan-api/internal/workflow/model"
)

type stubChatModel struct {
	reply    string
	err      error
	lastMsgs []*schema.Message
}

func (m *stubChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.lastMsgs = input
	if m.err != nil {
		return nil, m.err
	}
	return &schema.Message{
		Role:    schema.Assistant,
		Content: m.reply,
		ResponseMeta: &schema.ResponseMeta{
			Usage: &schema.TokenUsage{PromptTokens: 12, CompletionTokens: 34},
		},
	}, nil
}

func (m *stubChatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not supported")
}

type stubFactory struct {
	model *stubChatModel
}

func (f *stubFactory) Get(context.Context, string) (model.BaseChatModel, error) {
	return f.model, nil
}

func newBackend(reply string) (*Backend, *stubChatModel) {
	m := &stubChatModel{reply: reply}
	return NewBackend(&stubFactory{model: m}), m
}

func TestBackend_GenerateChapterOutlines(t *testing.T) {
	b, m := newBackend("好的，以下是大纲：\n" + `{"chapters":[
		{"chapter_number":4,"title":"夜航","summary":"船队出港"},
		{"chapter_number":3,"title":"风起","summary":"暴雨将至"}]}` + "\n以上。")

	out, err := b.GenerateChapterOutlines(context.Background(), &wfmodel.ChapterOutlineInput{
		Plan:         wfmodel.PlanContext{ProjectTitle: "长夜"},
		StartChapter: 3,
		EndChapter:   4,
		PreviousOutlines: []wfmodel.ChapterBrief{
			{ChapterNumber: 2, Title: "离乡", Summary: "少年离开故乡"},
		},
	})
	require.NoError(t, err)
	require.Len(t, out.Chapters, 2)
	assert.Equal(t, 3, out.Chapters[0].ChapterNumber)
	assert.Equal(t, "夜航", out.Chapters[1].Title)
	assert.Equal(t, 12, out.Meta.PromptTokens)

	require.Len(t, m.lastMsgs, 2)
	assert.Contains(t, m.lastMsgs[1].Content, "第2章 离乡")
	assert.Contains(t, m.lastMsgs[1].Content, "第 3 章至第 4 章")
}

func TestBackend_GenerateChapterOutlines_RejectsGap(t *testing.T) {
	b, _ := newBackend(`{"chapters":[{"chapter_number":1,"title":"a","summary":"x"},{"chapter_number":3,"title":"b","summary":"y"}]}`)

	_, err := b.GenerateChapterOutlines(context.Background(), &wfmodel.ChapterOutlineInput{StartChapter: 1, EndChapter: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not contiguous")
}

func TestBackend_GeneratePartOutline(t *testing.T) {
	b, _ := newBackend(`{"title":"潮汐","summary":"主角离开港口","theme":"成长","key_events":["出海"],"character_arcs":[{"character":"林舟","arc":"从怯懦到果敢"}],"conflicts":["船长与大副"],"ending_hook":"海图缺了一角"}`)

	out, err := b.GeneratePartOutline(context.Background(), &wfmodel.PartOutlineInput{
		Part: wfmodel.PartBrief{PartNumber: 1, StartChapter: 1, EndChapter: 25},
	})
	require.NoError(t, err)
	assert.Equal(t, "潮汐", out.Title)
	assert.JSONEq(t, `["出海"]`, string(out.KeyEvents))
	assert.Equal(t, "海图缺了一角", out.EndingHook)
}

func TestBackend_GenerateChapterContent(t *testing.T) {
	b, m := newBackend("  正文内容  ")

	out, err := b.GenerateChapterContent(context.Background(), &wfmodel.ChapterContentInput{
		Outline:         wfmodel.ChapterBrief{ChapterNumber: 1, Title: "序", Summary: "开端"},
		TargetWordCount: 3000,
	})
	require.NoError(t, err)
	assert.Equal(t, "正文内容", out.Content)
	assert.True(t, strings.Contains(m.lastMsgs[1].Content, "约 3000 字"))

	m.err = errors.New("upstream 503")
	_, err = b.GenerateChapterContent(context.Background(), &wfmodel.ChapterContentInput{
		Outline:         wfmodel.ChapterBrief{ChapterNumber: 1, Summary: "开端"},
		TargetWordCount: 3000,
	})
	require.Error(t, err)
}

func TestBackend_EvaluateChapterClampsScore(t *testing.T) {
	b, _ := newBackend(`{"decision":"ACCEPT","feedback":"不错","score":130}`)

	out, err := b.EvaluateChapter(context.Background(), &wfmodel.ChapterEvaluationInput{Content: "正文"})
	require.NoError(t, err)
	assert.Equal(t, "accept", out.Decision)
	assert.Equal(t, float64(100), out.Score)
}
