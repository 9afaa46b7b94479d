// Package generation 将 LLM 工作流链适配为规划引擎使用的生成后端
package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	workflowchain "z-novel-plan-api/internal/workflow/chain"
	wfmodel "z-novel-plan-api/internal/workflow/model"
	workflownode "z-novel-plan-api/internal/workflow/node"
	workflowport "z-novel-plan-api/internal/workflow/port"
	"z-novel-plan-api/pkg/metrics"
)

// Backend 基于 Eino 工作流链的生成后端
type Backend struct {
	partChain    *workflowchain.PartOutlineChain
	outlineChain *workflowchain.ChapterOutlineChain
	chapterChain *workflowchain.ChapterChain
	evalChain    *workflowchain.EvaluationChain
}

var _ workflowport.Generator = (*Backend)(nil)

// NewBackend 创建生成后端
func NewBackend(factory workflowport.ChatModelFactory) *Backend {
	return &Backend{
		partChain:    workflowchain.NewPartOutlineChain(factory),
		outlineChain: workflowchain.NewChapterOutlineChain(factory),
		chapterChain: workflowchain.NewChapterChain(factory),
		evalChain:    workflowchain.NewEvaluationChain(factory),
	}
}

// GeneratePartOutline 生成分卷叙事字段
func (b *Backend) GeneratePartOutline(ctx context.Context, in *wfmodel.PartOutlineInput) (*wfmodel.PartOutlineOutput, error) {
	start := time.Now()
	msg, err := b.partChain.Invoke(ctx, in)
	if err != nil {
		observe("part_outline", start, err)
		return nil, err
	}

	var out wfmodel.PartOutlineOutput
	if err := decodeJSON(msg.Content, &out); err != nil {
		observe("part_outline", start, err)
		return nil, fmt.Errorf("parse part outline: %w", err)
	}
	if strings.TrimSpace(out.Title) == "" && strings.TrimSpace(out.Summary) == "" {
		err := fmt.Errorf("part outline missing title and summary")
		observe("part_outline", start, err)
		return nil, err
	}
	out.Meta = usageMeta(msg, in.Options, start)
	observe("part_outline", start, nil)
	return &out, nil
}

// GenerateChapterOutlines 生成区间内的章节大纲
// 输出按章节号排序，并校验恰好覆盖请求区间
func (b *Backend) GenerateChapterOutlines(ctx context.Context, in *wfmodel.ChapterOutlineInput) (*wfmodel.ChapterOutlineOutput, error) {
	start := time.Now()
	msg, err := b.outlineChain.Invoke(ctx, in)
	if err != nil {
		observe("chapter_outline", start, err)
		return nil, err
	}

	var out wfmodel.ChapterOutlineOutput
	if err := decodeJSON(msg.Content, &out); err != nil {
		observe("chapter_outline", start, err)
		return nil, fmt.Errorf("parse chapter outlines: %w", err)
	}
	if err := normalizeChapterBriefs(&out, in.StartChapter, in.EndChapter); err != nil {
		observe("chapter_outline", start, err)
		return nil, err
	}
	out.Meta = usageMeta(msg, in.Options, start)
	observe("chapter_outline", start, nil)
	return &out, nil
}

// GenerateChapterContent 生成章节正文
func (b *Backend) GenerateChapterContent(ctx context.Context, in *wfmodel.ChapterContentInput) (*wfmodel.ChapterContentOutput, error) {
	start := time.Now()
	msg, err := b.chapterChain.Invoke(ctx, in)
	if err != nil {
		observe("chapter_content", start, err)
		return nil, err
	}

	content := strings.TrimSpace(msg.Content)
	if content == "" {
		err := fmt.Errorf("empty chapter content")
		observe("chapter_content", start, err)
		return nil, err
	}
	observe("chapter_content", start, nil)
	return &wfmodel.ChapterContentOutput{
		Content: content,
		Meta:    usageMeta(msg, in.Options, start),
	}, nil
}

// EvaluateChapter 评审章节正文
func (b *Backend) EvaluateChapter(ctx context.Context, in *wfmodel.ChapterEvaluationInput) (*wfmodel.ChapterEvaluationOutput, error) {
	start := time.Now()
	msg, err := b.evalChain.Invoke(ctx, in)
	if err != nil {
		observe("evaluation", start, err)
		return nil, err
	}

	var out wfmodel.ChapterEvaluationOutput
	if err := decodeJSON(msg.Content, &out); err != nil {
		observe("evaluation", start, err)
		return nil, fmt.Errorf("parse evaluation: %w", err)
	}
	out.Decision = strings.ToLower(strings.TrimSpace(out.Decision))
	switch {
	case out.Score < 0:
		out.Score = 0
	case out.Score > 100:
		out.Score = 100
	}
	out.Meta = usageMeta(msg, in.Options, start)
	observe("evaluation", start, nil)
	return &out, nil
}

func decodeJSON(content string, v any) error {
	raw := workflownode.ExtractJSON(content)
	if raw == "" {
		return fmt.Errorf("empty llm response")
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("invalid json: %w (raw=%s)", err, workflownode.Clip(raw, 200))
	}
	return nil
}

func normalizeChapterBriefs(out *wfmodel.ChapterOutlineOutput, start, end int) error {
	sort.SliceStable(out.Chapters, func(i, j int) bool {
		return out.Chapters[i].ChapterNumber < out.Chapters[j].ChapterNumber
	})

	// 模型未给章节号时按顺序补齐
	if len(out.Chapters) == end-start+1 {
		for i := range out.Chapters {
			if out.Chapters[i].ChapterNumber == 0 {
				out.Chapters[i].ChapterNumber = start + i
			}
		}
		sort.SliceStable(out.Chapters, func(i, j int) bool {
			return out.Chapters[i].ChapterNumber < out.Chapters[j].ChapterNumber
		})
	}

	if len(out.Chapters) != end-start+1 {
		return fmt.Errorf("expected %d chapter outlines for %d-%d, got %d", end-start+1, start, end, len(out.Chapters))
	}
	for i, ch := range out.Chapters {
		if ch.ChapterNumber != start+i {
			return fmt.Errorf("chapter outlines not contiguous: expected %d, got %d", start+i, ch.ChapterNumber)
		}
		if strings.TrimSpace(ch.Title) == "" && strings.TrimSpace(ch.Summary) == "" {
			return fmt.Errorf("chapter %d outline is empty", ch.ChapterNumber)
		}
	}
	return nil
}

func usageMeta(msg *schema.Message, opts wfmodel.CallOptions, start time.Time) wfmodel.LLMUsageMeta {
	meta := wfmodel.LLMUsageMeta{
		Provider:    strings.TrimSpace(opts.Provider),
		Model:       strings.TrimSpace(opts.Model),
		GeneratedAt: time.Now().UTC(),
		Duration:    time.Since(start),
	}
	if opts.Temperature != nil {
		meta.Temperature = float64(*opts.Temperature)
	}
	if msg != nil && msg.ResponseMeta != nil && msg.ResponseMeta.Usage != nil {
		meta.PromptTokens = msg.ResponseMeta.Usage.PromptTokens
		meta.CompletionTokens = msg.ResponseMeta.Usage.CompletionTokens
	}
	return meta
}

func observe(kind string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.GenerationTotal.WithLabelValues(kind, status).Inc()
	metrics.GenerationDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}
