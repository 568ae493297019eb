package flow

import (
	"encoding/json"
	"strings"
)

// AnswerValue 单个答案：单选/填空为标量字符串，多选为有序字符串列表。
type AnswerValue struct {
	Scalar string
	List   []string
	IsList bool
}

func ScalarAnswer(s string) AnswerValue {
	return AnswerValue{Scalar: s}
}

func ListAnswer(items []string) AnswerValue {
	return AnswerValue{List: items, IsList: true}
}

// IsEmpty 判断答案是否为空（未作答）。
func (v AnswerValue) IsEmpty() bool {
	if v.IsList {
		return len(v.List) == 0
	}
	return v.Scalar == ""
}

// String 返回用于条件比较的字符串形式；列表按逗号拼接，
// 与原有运行时对数组的松散字符串化保持一致。
func (v AnswerValue) String() string {
	if v.IsList {
		return strings.Join(v.List, ",")
	}
	return v.Scalar
}

func (v AnswerValue) MarshalJSON() ([]byte, error) {
	if v.IsList {
		return json.Marshal(v.List)
	}
	return json.Marshal(v.Scalar)
}

func (v *AnswerValue) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*v = ListAnswer(list)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*v = ScalarAnswer(s)
	return nil
}

// AnswerMap 题目 id 到当前答案的映射，登录时从持久层合并生成。
type AnswerMap map[string]AnswerValue

// Get returns the stored value and whether the question has been answered
// with a non-empty value.
func (m AnswerMap) Get(questionID string) (AnswerValue, bool) {
	v, ok := m[questionID]
	if !ok || v.IsEmpty() {
		return v, false
	}
	return v, true
}
