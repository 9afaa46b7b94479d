package chain

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	llmctx "z-novel-plan-api/internal/domain/service"
	wfmodel "z-novel-plan-api/internal/workflow/model"
	workflowport "z-novel-plan-api/internal/workflow/port"
	workflowprompt "z-novel-plan-api/internal/workflow/prompt"
)

var promptRegistry = workflowprompt.NewRegistry()

// generate 渲染模板并调用 ChatModel，返回原始消息
func generate(
	ctx context.Context,
	factory workflowport.ChatModelFactory,
	workflow string,
	promptID workflowprompt.PromptID,
	vars map[string]any,
	opts wfmodel.CallOptions,
) (*schema.Message, error) {
	if factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}

	provider := strings.TrimSpace(opts.Provider)
	ctx = llmctx.WithLLMCall(ctx, workflow, provider)
	chatModel, err := factory.Get(ctx, provider)
	if err != nil {
		return nil, err
	}

	tpl, err := promptRegistry.ChatTemplate(promptID)
	if err != nil {
		return nil, err
	}
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return nil, err
	}

	outMsg, err := chatModel.Generate(ctx, msgs, buildModelOptions(opts)...)
	if err != nil {
		return nil, err
	}
	if outMsg == nil {
		return nil, fmt.Errorf("empty llm response")
	}
	return outMsg, nil
}

func buildModelOptions(opts wfmodel.CallOptions) []model.Option {
	out := make([]model.Option, 0, 3)
	if opts.Temperature != nil {
		out = append(out, model.WithTemperature(*opts.Temperature))
	}
	if opts.MaxTokens != nil {
		out = append(out, model.WithMaxTokens(*opts.MaxTokens))
	}
	if strings.TrimSpace(opts.Model) != "" {
		out = append(out, model.WithModel(strings.TrimSpace(opts.Model)))
	}
	return out
}

func planVars(p wfmodel.PlanContext) map[string]any {
	return map[string]any{
		"project_title":  orNone(p.ProjectTitle),
		"synopsis":       orNone(p.Synopsis),
		"style":          orNone(p.Style),
		"characters":     orNone(p.Characters),
		"world_setting":  orNone(p.WorldSetting),
		"total_chapters": p.TotalChapters,
	}
}

func orNone(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "（无）"
	}
	return s
}

func formatChapterBriefs(briefs []wfmodel.ChapterBrief) string {
	if len(briefs) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, b := range briefs {
		fmt.Fprintf(&sb, "第%d章 %s：%s\n", b.ChapterNumber, strings.TrimSpace(b.Title), strings.TrimSpace(b.Summary))
	}
	return strings.TrimSpace(sb.String())
}

func formatPartBrief(p wfmodel.PartBrief) string {
	line := fmt.Sprintf("第%d卷（第%d-%d章）", p.PartNumber, p.StartChapter, p.EndChapter)
	if t := strings.TrimSpace(p.Title); t != "" {
		line += " " + t
	}
	if s := strings.TrimSpace(p.Summary); s != "" {
		line += "：" + s
	}
	if h := strings.TrimSpace(p.EndingHook); h != "" {
		line += "（卷末钩子：" + h + "）"
	}
	return line
}
