package model

import "encoding/json"

type PartOutlineInput struct {
	Plan          PlanContext
	Part          PartBrief
	PreviousParts []PartBrief
	Prompt        string
	Options       CallOptions
}

type PartOutlineOutput struct {
	Title         string          `json:"title"`
	Summary       string          `json:"summary"`
	Theme         string          `json:"theme"`
	KeyEvents     json.RawMessage `json:"key_events"`
	CharacterArcs json.RawMessage `json:"character_arcs"`
	Conflicts     json.RawMessage `json:"conflicts"`
	EndingHook    string          `json:"ending_hook"`
	Meta          LLMUsageMeta    `json:"-"`
}

type ChapterOutlineInput struct {
	Plan             PlanContext
	Part             *PartBrief
	StartChapter     int
	EndChapter       int
	PreviousOutlines []ChapterBrief
	Prompt           string
	Options          CallOptions
}

type ChapterOutlineOutput struct {
	Chapters []ChapterBrief `json:"chapters"`
	Meta     LLMUsageMeta   `json:"-"`
}
