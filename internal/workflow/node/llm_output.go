// Package node 模型输出的后处理
package node

import (
	"strings"
	"unicode/utf8"
)

// ExtractJSON 截取模型输出中第一个括号配平的 JSON 对象或数组。
// 模型常在 JSON 前后附带说明文字或 ```json 围栏；找不到配平的值时返回去掉首尾空白的原文。
func ExtractJSON(s string) string {
	raw := strings.TrimSpace(s)
	start := strings.IndexAny(raw, "{[")
	if start < 0 {
		return raw
	}

	var stack []byte
	inString, escaped := false, false
	for i := start; i < len(raw); i++ {
		ch := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != ch {
				return raw
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return raw[start : i+1]
			}
		}
	}
	return raw
}

// Clip 按字符数截断，用于在错误信息里附带模型原文
func Clip(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	n := 0
	for i := range s {
		if n == maxRunes {
			return s[:i] + "…"
		}
		n++
	}
	return s
}
