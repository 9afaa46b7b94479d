package retrieval

import (
	"encoding/json"
	"strings"
)

const segmentMetaPrefix = "@@meta:"

// SegmentMeta 写入 Milvus text_content 头部的结构化元信息。
// 不存在时读取方应安全降级。
type SegmentMeta struct {
	ChapterID     string `json:"chapter_id,omitempty"`
	ChapterNumber int    `json:"chapter_number,omitempty"`
	ChapterTitle  string `json:"chapter_title,omitempty"`
	VersionID     string `json:"version_id,omitempty"`
	VersionLabel  string `json:"version_label,omitempty"`
	Chunk         int    `json:"chunk"`
}

func encodeSegmentText(meta SegmentMeta, text string) string {
	b, _ := json.Marshal(meta)
	var sb strings.Builder
	sb.Grow(len(segmentMetaPrefix) + len(b) + 1 + len(text))
	sb.WriteString(segmentMetaPrefix)
	sb.Write(b)
	sb.WriteByte('\n')
	sb.WriteString(text)
	return sb.String()
}

// DecodeSegmentText 拆出片段头部元信息与正文
func DecodeSegmentText(textContent string) (SegmentMeta, string) {
	raw := strings.TrimSpace(textContent)
	if !strings.HasPrefix(raw, segmentMetaPrefix) {
		return SegmentMeta{}, raw
	}
	line, body, ok := strings.Cut(strings.TrimPrefix(raw, segmentMetaPrefix), "\n")
	if !ok {
		return SegmentMeta{}, raw
	}
	var meta SegmentMeta
	if err := json.Unmarshal([]byte(strings.TrimSpace(line)), &meta); err != nil {
		return SegmentMeta{}, strings.TrimSpace(body)
	}
	return meta, strings.TrimSpace(body)
}
