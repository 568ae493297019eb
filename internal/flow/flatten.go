package flow

// Step 扁平化后的线性导航单元，仅由 text/question 块派生，
// 每次从 BlockTree 即时计算，不落库。
type Step struct {
	ID           string     `json:"id"`
	BlockType    BlockType  `json:"blockType"`
	Conditional  bool       `json:"conditional"`
	ConditionRef *Condition `json:"conditionRef,omitempty"`
	Title        string     `json:"title,omitempty"`
	Text         string     `json:"text,omitempty"`
	QuestionType string     `json:"questionType,omitempty"`
	Options      []string   `json:"options,omitempty"`
}

// Flatten 将块树深度优先展开为有序 Step 列表。
//
// 规则：
//   - section 本身不产生 Step，仅按 children 顺序递归；
//   - text / question 各产生一个 Step；
//   - condition 本身不产生 Step，其子树产生的 Step 带上
//     conditional=true 和该条件的谓词。
//
// children 中悬空的 id 静默跳过（兼容既有数据，见 MissingChildren）；
// 检测到环时返回 ErrCyclicBlockTree，环的预期行为上游未定义，
// 只能按结构错误硬失败。
func Flatten(tree *BlockTree) ([]Step, error) {
	f := &flattener{
		tree:    tree,
		visited: make(map[string]bool, len(tree.Blocks)),
	}
	for _, root := range tree.Roots() {
		if err := f.walk(root, nil); err != nil {
			return nil, err
		}
	}
	return f.steps, nil
}

type flattener struct {
	tree    *BlockTree
	steps   []Step
	visited map[string]bool
}

func (f *flattener) walk(b *Block, cond *Condition) error {
	if f.visited[b.ID] {
		return ErrCyclicBlockTree
	}
	f.visited[b.ID] = true

	switch b.Type {
	case BlockSection:
		return f.walkChildren(b, cond)
	case BlockCondition:
		content := b.DecodeContent()
		return f.walkChildren(b, content.Condition)
	case BlockText, BlockQuestion:
		f.emit(b, cond)
		return nil
	default:
		// 未知类型不产生 Step，也不中断整棵树
		return nil
	}
}

func (f *flattener) walkChildren(b *Block, cond *Condition) error {
	for _, childID := range b.Children {
		child := f.tree.Lookup(childID)
		if child == nil {
			continue
		}
		if err := f.walk(child, cond); err != nil {
			return err
		}
	}
	return nil
}

func (f *flattener) emit(b *Block, cond *Condition) {
	content := b.DecodeContent()
	step := Step{
		ID:           b.ID,
		BlockType:    b.Type,
		Conditional:  cond != nil,
		ConditionRef: cond,
		Title:        content.Title,
		Text:         content.Text,
		QuestionType: content.QuestionType,
		Options:      content.Options,
	}
	f.steps = append(f.steps, step)
}
