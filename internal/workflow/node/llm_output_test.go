package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"fenced", "好的，结果如下：\n```json\n{\"a\":[1,2]}\n```\n希望有帮助", `{"a":[1,2]}`},
		{"array", `输出: [{"n":1},{"n":2}] 完`, `[{"n":1},{"n":2}]`},
		{"braces in string", `{"t":"}{]"} 多余 {"b":2}`, `{"t":"}{]"}`},
		{"escaped quote", `{"t":"他说\"}\""}`, `{"t":"他说\"}\""}`},
		{"unbalanced", `  {"a":1  `, `{"a":1`},
		{"no json", "  纯文本  ", "纯文本"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractJSON(tc.in))
		})
	}
}

func TestClip(t *testing.T) {
	assert.Equal(t, "", Clip("abc", 0))
	assert.Equal(t, "短文", Clip("短文", 5))
	assert.Equal(t, "一二…", Clip("一二三四", 2))
}
