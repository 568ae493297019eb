package flow

import "testing"

func TestEvaluateOperators(t *testing.T) {
	answers := AnswerMap{
		"q1": ScalarAnswer("Yes"),
		"q2": ScalarAnswer("15"),
		"q3": ScalarAnswer("abc"),
		"q4": ListAnswer([]string{"a", "b"}),
		"q5": ScalarAnswer(""),
	}

	cases := []struct {
		name string
		cond *Condition
		want bool
	}{
		{"nil condition is visible", nil, true},
		{"missing question id is visible", &Condition{Operator: OpEquals, Value: "x"}, true},

		{"equals case-insensitive", &Condition{QuestionID: "q1", Operator: OpEquals, Value: "yes"}, true},
		{"equals mismatch", &Condition{QuestionID: "q1", Operator: OpEquals, Value: "no"}, false},
		{"not_equals", &Condition{QuestionID: "q1", Operator: OpNotEquals, Value: "no"}, true},
		{"not_equals same value", &Condition{QuestionID: "q1", Operator: OpNotEquals, Value: "YES"}, false},

		{"contains substring", &Condition{QuestionID: "q1", Operator: OpContains, Value: "e"}, true},
		{"contains on joined list", &Condition{QuestionID: "q4", Operator: OpContains, Value: "a,b"}, true},
		{"contains miss", &Condition{QuestionID: "q1", Operator: OpContains, Value: "z"}, false},

		{"greater numeric", &Condition{QuestionID: "q2", Operator: OpGreater, Value: "10"}, true},
		{"greater not satisfied", &Condition{QuestionID: "q2", Operator: OpGreater, Value: "20"}, false},
		{"less numeric", &Condition{QuestionID: "q2", Operator: OpLess, Value: "20"}, true},
		// 数字解析失败 ⇒ 比较恒为假，两个方向都是
		{"greater non-numeric actual", &Condition{QuestionID: "q3", Operator: OpGreater, Value: "10"}, false},
		{"less non-numeric actual", &Condition{QuestionID: "q3", Operator: OpLess, Value: "10"}, false},
		{"greater non-numeric expected", &Condition{QuestionID: "q2", Operator: OpGreater, Value: "abc"}, false},

		{"is_empty on answered", &Condition{QuestionID: "q1", Operator: OpIsEmpty}, false},
		{"is_empty on empty string", &Condition{QuestionID: "q5", Operator: OpIsEmpty}, true},
		{"is_empty on absent", &Condition{QuestionID: "missing", Operator: OpIsEmpty}, true},
		{"is_not_empty on answered", &Condition{QuestionID: "q1", Operator: OpIsNotEmpty}, true},
		{"is_not_empty on absent", &Condition{QuestionID: "missing", Operator: OpIsNotEmpty}, false},

		// 缺失答案下除 is_empty 外全部不可见
		{"equals on absent answer", &Condition{QuestionID: "missing", Operator: OpEquals, Value: ""}, false},

		// 未知算子保持宽容默认
		{"unknown operator is visible", &Condition{QuestionID: "q1", Operator: "matches", Value: "x"}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Evaluate(tc.cond, answers); got != tc.want {
				t.Errorf("Evaluate(%+v) = %v, want %v", tc.cond, got, tc.want)
			}
		})
	}
}

func TestVisible(t *testing.T) {
	answers := AnswerMap{"q1": ScalarAnswer("no")}

	plain := Step{ID: "t1", BlockType: BlockText}
	if !Visible(plain, answers) {
		t.Error("non-conditional step must always be visible")
	}

	gated := Step{
		ID:           "q2",
		BlockType:    BlockQuestion,
		Conditional:  true,
		ConditionRef: &Condition{QuestionID: "q1", Operator: OpEquals, Value: "yes"},
	}
	if Visible(gated, answers) {
		t.Error("step gated on q1==yes must be hidden when q1=no")
	}

	answers["q1"] = ScalarAnswer("YES")
	if !Visible(gated, answers) {
		t.Error("step must become visible once q1=yes")
	}
}

func TestAnswerValueForms(t *testing.T) {
	if !ScalarAnswer("").IsEmpty() || !ListAnswer(nil).IsEmpty() {
		t.Error("empty forms must report empty")
	}
	if ScalarAnswer("x").IsEmpty() || ListAnswer([]string{"a"}).IsEmpty() {
		t.Error("non-empty forms must not report empty")
	}
	if got := ListAnswer([]string{"a", "b"}).String(); got != "a,b" {
		t.Errorf("list string form = %q, want %q", got, "a,b")
	}
}
