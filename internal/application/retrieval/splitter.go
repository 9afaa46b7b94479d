package retrieval

import "strings"

// splitByRunes 按字符数切片，相邻片段保留 overlap 个字符的重叠
func splitByRunes(s string, size, overlap int) []string {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return nil
	}
	runes := []rune(raw)
	if size <= 0 || len(runes) <= size {
		return []string{raw}
	}
	step := size - max(overlap, 0)
	if step <= 0 {
		step = size
	}

	out := make([]string, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := min(start+size, len(runes))
		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			out = append(out, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return out
}
