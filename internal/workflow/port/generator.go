package port

import (
	"context"

	"github.com/cloudwego/eino/components/model"

	wfmodel "z-novel-plan-api/internal/workflow/model"
)

// Generator 生成后端（LLM 黑盒）：输入结构化上下文，输出结构化文本/JSON。
// 调用可能耗时很久，调用方通过 ctx 取消等待。
type Generator interface {
	GeneratePartOutline(ctx context.Context, in *wfmodel.PartOutlineInput) (*wfmodel.PartOutlineOutput, error)
	GenerateChapterOutlines(ctx context.Context, in *wfmodel.ChapterOutlineInput) (*wfmodel.ChapterOutlineOutput, error)
	GenerateChapterContent(ctx context.Context, in *wfmodel.ChapterContentInput) (*wfmodel.ChapterContentOutput, error)
	EvaluateChapter(ctx context.Context, in *wfmodel.ChapterEvaluationInput) (*wfmodel.ChapterEvaluationOutput, error)
}

// ChatModelFactory 按 provider 名称取 ChatModel，空名称取默认 provider
type ChatModelFactory interface {
	Get(ctx context.Context, provider string) (model.BaseChatModel, error)
}
