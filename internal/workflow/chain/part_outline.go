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

type PartOutlineChain struct {
	factory workflowport.ChatModelFactory
}

func NewPartOutlineChain(factory workflowport.ChatModelFactory) *PartOutlineChain {
	return &PartOutlineChain{factory: factory}
}

func (c *PartOutlineChain) Invoke(ctx context.Context, in *wfmodel.PartOutlineInput) (*schema.Message, error) {
	if c == nil {
		return nil, fmt.Errorf("part outline chain not configured")
	}
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	if in.Part.StartChapter <= 0 || in.Part.EndChapter < in.Part.StartChapter {
		return nil, fmt.Errorf("invalid part range %d-%d", in.Part.StartChapter, in.Part.EndChapter)
	}

	vars := planVars(in.Plan)
	vars["part_number"] = in.Part.PartNumber
	vars["start_chapter"] = in.Part.StartChapter
	vars["end_chapter"] = in.Part.EndChapter
	vars["prompt"] = orNone(in.Prompt)

	prev := make([]string, 0, len(in.PreviousParts))
	for _, p := range in.PreviousParts {
		prev = append(prev, formatPartBrief(p))
	}
	vars["previous_parts"] = orNone(strings.Join(prev, "\n"))

	return generate(ctx, c.factory, "part_outline", workflowprompt.PromptPartOutlineV1, vars, in.Options)
}
