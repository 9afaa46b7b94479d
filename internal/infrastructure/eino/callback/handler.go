// Package callback 注册 Eino 全局回调，为每次 ChatModel 调用记录链路与指标
package callback

import (
	"context"
	"sync"
	"time"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	cbtemplate "github.com/cloudwego/eino/utils/callbacks"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"z-novel-plan-api/internal/domain/service"
	"z-novel-plan-api/pkg/metrics"
)

var registerOnce sync.Once

// Init 注册全局 ChatModel 回调，重复调用无效果
func Init() {
	registerOnce.Do(func() {
		einocb.AppendGlobalHandlers(cbtemplate.NewHandlerHelper().
			ChatModel(newChatModelCallbackHandler()).
			Handler())
	})
}

type startTimeKey struct{}

type callLabels struct {
	workflow string
	provider string
	model    string
}

func labelsFrom(ctx context.Context, modelName string) callLabels {
	call := service.LLMCallFrom(ctx)
	return callLabels{workflow: call.Workflow, provider: call.Provider, model: modelName}
}

func (l callLabels) observe(ctx context.Context, status string) {
	metrics.LLMCallTotal.WithLabelValues(l.workflow, l.provider, l.model, status).Inc()
	if d := elapsedSeconds(ctx); d > 0 {
		metrics.LLMCallDuration.WithLabelValues(l.workflow, l.provider, l.model).Observe(d)
	}
}

func newChatModelCallbackHandler() *cbtemplate.ModelCallbackHandler {
	return &cbtemplate.ModelCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *model.CallbackInput) context.Context {
			ctx = context.WithValue(ctx, startTimeKey{}, time.Now())

			l := labelsFrom(ctx, modelNameFromInput(input))
			attrs := []attribute.KeyValue{
				attribute.String("eino.workflow", l.workflow),
				attribute.String("llm.provider", l.provider),
				attribute.String("llm.model", l.model),
			}
			if info != nil {
				attrs = append(attrs, attribute.String("eino.node_name", info.Name))
			}

			ctx, _ = otel.Tracer("eino").Start(ctx, "llm.generate", trace.WithAttributes(attrs...))
			return ctx
		},

		OnEnd: func(ctx context.Context, _ *einocb.RunInfo, output *model.CallbackOutput) context.Context {
			l := labelsFrom(ctx, modelNameFromOutput(output))
			l.observe(ctx, "success")

			span := trace.SpanFromContext(ctx)
			if output != nil && output.TokenUsage != nil {
				usage := output.TokenUsage
				metrics.LLMTokensUsed.WithLabelValues(l.workflow, l.provider, l.model, "prompt").Add(float64(usage.PromptTokens))
				metrics.LLMTokensUsed.WithLabelValues(l.workflow, l.provider, l.model, "completion").Add(float64(usage.CompletionTokens))
				span.SetAttributes(
					attribute.Int("llm.prompt_tokens", usage.PromptTokens),
					attribute.Int("llm.completion_tokens", usage.CompletionTokens),
				)
			}
			span.End()
			return ctx
		},

		OnError: func(ctx context.Context, _ *einocb.RunInfo, err error) context.Context {
			labelsFrom(ctx, "").observe(ctx, "error")

			span := trace.SpanFromContext(ctx)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()
			return ctx
		},
	}
}

func elapsedSeconds(ctx context.Context) float64 {
	start, ok := ctx.Value(startTimeKey{}).(time.Time)
	if !ok || start.IsZero() {
		return 0
	}
	return time.Since(start).Seconds()
}

func modelNameFromInput(in *model.CallbackInput) string {
	if in == nil || in.Config == nil {
		return ""
	}
	return in.Config.Model
}

func modelNameFromOutput(out *model.CallbackOutput) string {
	if out == nil || out.Config == nil {
		return ""
	}
	return out.Config.Model
}
