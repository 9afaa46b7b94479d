package chain

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"

	wfmodel "z-novel-plan-api/internal/workflow/model"
	workflowport "z-novel-plan-api/internal/workflow/port"
	workflowprompt "z-novel-plan-api/internal/workflow/prompt"
)

type ChapterOutlineChain struct {
	factory workflowport.ChatModelFactory
}

func NewChapterOutlineChain(factory workflowport.ChatModelFactory) *ChapterOutlineChain {
	return &ChapterOutlineChain{factory: factory}
}

func (c *ChapterOutlineChain) Invoke(ctx context.Context, in *wfmodel.ChapterOutlineInput) (*schema.Message, error) {
	if c == nil {
		return nil, fmt.Errorf("chapter outline chain not configured")
	}
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	if in.StartChapter <= 0 || in.EndChapter < in.StartChapter {
		return nil, fmt.Errorf("invalid chapter range %d-%d", in.StartChapter, in.EndChapter)
	}

	vars := planVars(in.Plan)
	vars["start_chapter"] = in.StartChapter
	vars["end_chapter"] = in.EndChapter
	vars["previous_outlines"] = orNone(formatChapterBriefs(in.PreviousOutlines))
	vars["prompt"] = orNone(in.Prompt)
	if in.Part != nil {
		vars["part"] = formatPartBrief(*in.Part)
	} else {
		vars["part"] = orNone("")
	}

	return generate(ctx, c.factory, "chapter_outline", workflowprompt.PromptChapterOutlineV1, vars, in.Options)
}
