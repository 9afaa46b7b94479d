package outline

import (
	"context"
	"encoding/json"
	"strings"

	"z-novel-plan-api/internal/domain/entity"
	"z-novel-plan-api/internal/domain/repository"
	wfmodel "z-novel-plan-api/internal/workflow/model"
)

// BlueprintStore 蓝图读写（由 blueprint.Service 实现）
type BlueprintStore interface {
	Find(ctx context.Context, projectID string) (*entity.Blueprint, error)
	Save(ctx context.Context, bp *entity.Blueprint) error
}

// GenerateOptions 单次生成请求的可选参数
type GenerateOptions struct {
	Prompt   string
	Provider string
	Model    string
}

func (o GenerateOptions) callOptions() wfmodel.CallOptions {
	return wfmodel.CallOptions{
		Provider: strings.TrimSpace(o.Provider),
		Model:    strings.TrimSpace(o.Model),
	}
}

// refreshPartProgress 按区间内已有章节大纲数刷新分卷进度
func refreshPartProgress(ctx context.Context, outlines repository.ChapterOutlineRepository, parts repository.PartOutlineRepository, part *entity.PartOutline) error {
	count, err := outlines.CountRange(ctx, part.ProjectID, part.StartChapter, part.EndChapter)
	if err != nil {
		return err
	}
	part.RefreshProgress(int(count))
	return parts.Update(ctx, part)
}

func partBrief(p *entity.PartOutline) wfmodel.PartBrief {
	return wfmodel.PartBrief{
		PartNumber:   p.PartNumber,
		StartChapter: p.StartChapter,
		EndChapter:   p.EndChapter,
		Title:        p.Title,
		Summary:      p.Summary,
		EndingHook:   p.EndingHook,
	}
}

func chapterBrief(o *entity.ChapterOutline) wfmodel.ChapterBrief {
	return wfmodel.ChapterBrief{
		ChapterNumber: o.ChapterNumber,
		Title:         o.Title,
		Summary:       o.Summary,
	}
}

// rawFlex 模型输出的结构化字段仅接受 JSON 对象或数组，其余丢弃
func rawFlex(raw json.RawMessage) entity.FlexJSON {
	var f entity.FlexJSON
	if err := f.UnmarshalJSON(raw); err != nil || f.IsEmpty() {
		return nil
	}
	return f
}
