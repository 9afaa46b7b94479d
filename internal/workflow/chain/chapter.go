package chain

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	wfmodel "z-novel-plan-api/internal/workflow/model"
	workflowport "z-novel-plan-api/internal/workflow/port"
	workflowprompt "z-novel-plan-api/internal/workflow/prompt"
)

type ChapterChain struct {
	factory workflowport.ChatModelFactory
}

func NewChapterChain(factory workflowport.ChatModelFactory) *ChapterChain {
	return &ChapterChain{factory: factory}
}

func (c *ChapterChain) Invoke(ctx context.Context, in *wfmodel.ChapterContentInput) (*schema.Message, error) {
	if c == nil {
		return nil, fmt.Errorf("chapter chain not configured")
	}
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	if strings.TrimSpace(in.Outline.Summary) == "" {
		return nil, fmt.Errorf("chapter outline is required")
	}
	if in.TargetWordCount <= 0 {
		return nil, fmt.Errorf("target_word_count is required")
	}

	vars := planVars(in.Plan)
	vars["chapter_number"] = in.Outline.ChapterNumber
	vars["chapter_title"] = strings.TrimSpace(in.Outline.Title)
	vars["chapter_outline"] = strings.TrimSpace(in.Outline.Summary)
	vars["recent_outlines"] = orNone(formatChapterBriefs(in.RecentOutlines))
	vars["previous_tail"] = orNone(in.PreviousTail)
	vars["target_word_count"] = in.TargetWordCount
	vars["prompt"] = orNone(in.Prompt)

	return generate(ctx, c.factory, "chapter_generate", workflowprompt.PromptChapterGenV1, vars, in.Options)
}
