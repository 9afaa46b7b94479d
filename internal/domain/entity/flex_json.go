// Package entity 定义领域实体
package entity

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrFlexJSONShape 非对象/数组的 JSON 值
var ErrFlexJSONShape = errors.New("flex json field must be an object or an array")

// FlexJSON 结构灵活的 JSON 字段（关键事件、人物弧光、冲突等）
// 内部不约束结构，仅在序列化边界校验为对象或数组
type FlexJSON json.RawMessage

// NewFlexJSON 由任意值构造 FlexJSON
func NewFlexJSON(v any) (FlexJSON, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if err := validateFlexJSON(raw); err != nil {
		return nil, err
	}
	return FlexJSON(raw), nil
}

// MustFlexJSON 构造 FlexJSON，失败时 panic，仅用于常量数据
func MustFlexJSON(v any) FlexJSON {
	f, err := NewFlexJSON(v)
	if err != nil {
		panic(err)
	}
	return f
}

func validateFlexJSON(raw []byte) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if !json.Valid(trimmed) {
		return fmt.Errorf("invalid json: %s", truncateBytes(trimmed, 64))
	}
	switch trimmed[0] {
	case '{', '[':
		return nil
	default:
		return ErrFlexJSONShape
	}
}

func truncateBytes(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// IsEmpty 是否为空值
func (f FlexJSON) IsEmpty() bool {
	trimmed := bytes.TrimSpace(f)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// Decode 解码到目标结构
func (f FlexJSON) Decode(v any) error {
	if f.IsEmpty() {
		return nil
	}
	return json.Unmarshal(f, v)
}

// MarshalJSON 实现 json.Marshaler
func (f FlexJSON) MarshalJSON() ([]byte, error) {
	if f.IsEmpty() {
		return []byte("null"), nil
	}
	return f, nil
}

// UnmarshalJSON 实现 json.Unmarshaler，拒绝标量值
func (f *FlexJSON) UnmarshalJSON(data []byte) error {
	if err := validateFlexJSON(data); err != nil {
		return err
	}
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*f = nil
		return nil
	}
	*f = append((*f)[0:0], trimmed...)
	return nil
}

// Value 实现 driver.Valuer
func (f FlexJSON) Value() (driver.Value, error) {
	if f.IsEmpty() {
		return nil, nil
	}
	if err := validateFlexJSON(f); err != nil {
		return nil, err
	}
	return string(f), nil
}

// Scan 实现 sql.Scanner
func (f *FlexJSON) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*f = nil
		return nil
	case []byte:
		*f = append((*f)[0:0], v...)
	case string:
		*f = FlexJSON(v)
	default:
		return fmt.Errorf("unsupported flex json source type %T", src)
	}
	return validateFlexJSON(*f)
}
