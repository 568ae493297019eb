package flow

import (
	"strconv"
	"strings"
)

// Condition 条件块的谓词：对某个题目的当前答案做固定算子比较。
// 算子集合是封闭的，这里不是通用规则引擎。
type Condition struct {
	QuestionID string `json:"questionId"`
	Operator   string `json:"operator"`
	Value      string `json:"value"`
}

const (
	OpEquals     = "equals"
	OpNotEquals  = "not_equals"
	OpContains   = "contains"
	OpGreater    = "greater"
	OpLess       = "less"
	OpIsEmpty    = "is_empty"
	OpIsNotEmpty = "is_not_empty"
)

// Evaluate 判断条件在当前答案下是否可见。渲染和导航共用这一份逻辑。
//
// 约定（与既有前后端行为兼容，不要"修正"）：
//   - 无条件或条件缺 questionId ⇒ 默认可见；
//   - 答案缺失或为空 ⇒ 仅 is_empty 可见；
//   - equals/not_equals/contains 按大小写不敏感的字符串形式比较；
//   - greater/less 双方数字解析后比较，解析失败时比较恒为假；
//   - 未知算子 ⇒ 默认可见。
func Evaluate(cond *Condition, answers AnswerMap) bool {
	if cond == nil || cond.QuestionID == "" {
		return true
	}

	actual, answered := answers.Get(cond.QuestionID)
	if !answered {
		return cond.Operator == OpIsEmpty
	}

	actualStr := strings.ToLower(actual.String())
	expectStr := strings.ToLower(cond.Value)

	switch cond.Operator {
	case OpEquals:
		return actualStr == expectStr
	case OpNotEquals:
		return actualStr != expectStr
	case OpContains:
		return strings.Contains(actualStr, expectStr)
	case OpGreater:
		a, errA := strconv.ParseFloat(actualStr, 64)
		b, errB := strconv.ParseFloat(expectStr, 64)
		if errA != nil || errB != nil {
			return false
		}
		return a > b
	case OpLess:
		a, errA := strconv.ParseFloat(actualStr, 64)
		b, errB := strconv.ParseFloat(expectStr, 64)
		if errA != nil || errB != nil {
			return false
		}
		return a < b
	case OpIsEmpty:
		return false
	case OpIsNotEmpty:
		return true
	default:
		return true
	}
}

// Visible 对带条件的 Step 求可见性，非条件 Step 恒可见。
func Visible(step Step, answers AnswerMap) bool {
	if !step.Conditional {
		return true
	}
	return Evaluate(step.ConditionRef, answers)
}
