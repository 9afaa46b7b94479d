package model

type ChapterContentInput struct {
	Plan            PlanContext
	Outline         ChapterBrief
	RecentOutlines  []ChapterBrief
	PreviousTail    string
	Prompt          string
	TargetWordCount int
	Options         CallOptions
}

type ChapterContentOutput struct {
	Content string
	Meta    LLMUsageMeta
}

type ChapterEvaluationInput struct {
	Plan    PlanContext
	Outline ChapterBrief
	Content string
	Options CallOptions
}

type ChapterEvaluationOutput struct {
	Decision string       `json:"decision"`
	Feedback string       `json:"feedback"`
	Score    float64      `json:"score"`
	Meta     LLMUsageMeta `json:"-"`
}
