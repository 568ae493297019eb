package flow

// ResumeIndex 计算回访用户应落在的 Step 下标：按顺序找到第一个
// 没有非空答案的 question 步骤；全部已答时停在最后一个 Step 上
// （不会越过表单末尾）。text 步骤在扫描中始终跳过。
//
// 注意：扫描刻意不走条件求值——被条件隐藏且未作答的题目同样会
// 占住续填位置。这一点沿自既有线上行为，在产品侧澄清之前保持原样。
func ResumeIndex(steps []Step, answers AnswerMap) int {
	if len(steps) == 0 {
		return 0
	}
	for i, step := range steps {
		if step.BlockType != BlockQuestion {
			continue
		}
		if _, answered := answers.Get(step.ID); !answered {
			return i
		}
	}
	return len(steps) - 1
}

// VisibleResumeIndex 把续填位置换算到可见步骤列表的坐标系。
// 与可见步骤列表一起下发时必须用它：ResumeIndex 是全量列表下标，
// 直接套在可见列表上会越界。续填位置上的步骤被条件隐藏时落到其
// 后第一个可见步骤；其后没有可见步骤时停在可见列表末尾；没有
// 任何可见步骤时为 0。
func VisibleResumeIndex(steps []Step, answers AnswerMap) int {
	resume := ResumeIndex(steps, answers)

	idx := 0
	total := 0
	for i, step := range steps {
		if !Visible(step, answers) {
			continue
		}
		if i < resume {
			idx++
		}
		total++
	}
	if idx >= total {
		if total == 0 {
			return 0
		}
		return total - 1
	}
	return idx
}

// NextVisibleIndex 从 from 开始向后找第一个在当前答案下可见的
// Step 下标；连续隐藏的步骤会被一并跳过，找不到时返回 -1。
// 导航层必须用它而不是直接 +1，避免渲染出空步骤。
func NextVisibleIndex(steps []Step, answers AnswerMap, from int) int {
	if from < 0 {
		from = 0
	}
	for i := from; i < len(steps); i++ {
		if Visible(steps[i], answers) {
			return i
		}
	}
	return -1
}

// VisibleSteps 过滤出当前答案下可见的步骤，服务端据此直接
// 下发已解析的列表，客户端不再自行求值。
func VisibleSteps(steps []Step, answers AnswerMap) []Step {
	visible := make([]Step, 0, len(steps))
	for _, step := range steps {
		if Visible(step, answers) {
			visible = append(visible, step)
		}
	}
	return visible
}
