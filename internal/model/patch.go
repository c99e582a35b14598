package model

import (
	"fmt"
	"sort"
)

// 可由用户修改的字段（JSON 名称）
const (
	FieldStatus  = "status"
	FieldAIDraft = "aiDraft"
)

// EmailPatch is a validated sparse update. Only status and aiDraft are editable.
type EmailPatch struct {
	Status *Status
	// SetAIDraft marks aiDraft as present in the update; a nil AIDraft then clears it.
	SetAIDraft bool
	AIDraft    *string
}

// Empty reports whether the patch changes nothing.
func (p EmailPatch) Empty() bool {
	return p.Status == nil && !p.SetAIDraft
}

// Apply merges the patch into a copy of e.
func (p EmailPatch) Apply(e Email) Email {
	out := e.Clone()
	if p.Status != nil {
		out.Status = *p.Status
	}
	if p.SetAIDraft {
		if p.AIDraft == nil {
			out.AIDraft = nil
		} else {
			d := *p.AIDraft
			out.AIDraft = &d
		}
	}
	return out
}

// ParsePatch 把调用方传入的稀疏字段集合转换为 EmailPatch。
// 出现不可编辑字段时返回 ErrUnsupportedField，值不合法时返回 ErrInvalidValue。
func ParsePatch(fields map[string]any) (EmailPatch, error) {
	var patch EmailPatch

	// 按字段名排序，保证错误信息稳定
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if k != FieldStatus && k != FieldAIDraft {
			return EmailPatch{}, fmt.Errorf("%w: %s", ErrUnsupportedField, k)
		}
	}

	for _, k := range keys {
		v := fields[k]
		switch k {
		case FieldStatus:
			s, ok := v.(string)
			if !ok {
				return EmailPatch{}, invalidValue(FieldStatus, fmt.Sprint(v))
			}
			st := Status(s)
			if !st.Valid() {
				return EmailPatch{}, invalidValue(FieldStatus, s)
			}
			patch.Status = &st
		case FieldAIDraft:
			patch.SetAIDraft = true
			switch d := v.(type) {
			case nil:
				patch.AIDraft = nil
			case string:
				patch.AIDraft = &d
			case *string:
				patch.AIDraft = d
			default:
				return EmailPatch{}, invalidValue(FieldAIDraft, fmt.Sprint(v))
			}
		}
	}

	if patch.Empty() {
		return EmailPatch{}, fmt.Errorf("%w: no fields to update", ErrInvalidValue)
	}
	return patch, nil
}
