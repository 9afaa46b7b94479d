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

type EvaluationChain struct {
	factory workflowport.ChatModelFactory
}

func NewEvaluationChain(factory workflowport.ChatModelFactory) *EvaluationChain {
	return &EvaluationChain{factory: factory}
}

func (c *EvaluationChain) Invoke(ctx context.Context, in *wfmodel.ChapterEvaluationInput) (*schema.Message, error) {
	if c == nil {
		return nil, fmt.Errorf("evaluation chain not configured")
	}
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, fmt.Errorf("content is required")
	}

	vars := planVars(in.Plan)
	vars["chapter_number"] = in.Outline.ChapterNumber
	vars["chapter_title"] = strings.TrimSpace(in.Outline.Title)
	vars["chapter_outline"] = orNone(in.Outline.Summary)
	vars["content"] = strings.TrimSpace(in.Content)

	return generate(ctx, c.factory, "chapter_evaluate", workflowprompt.PromptChapterEvalV1, vars, in.Options)
}
