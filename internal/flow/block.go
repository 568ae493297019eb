package flow

import (
	"encoding/json"
	"errors"
	"fmt"
)

// 块类型：表单定义树中的四种节点
type BlockType string

const (
	BlockSection   BlockType = "section"
	BlockText      BlockType = "text"
	BlockQuestion  BlockType = "question"
	BlockCondition BlockType = "condition"
)

var ErrCyclicBlockTree = errors.New("block tree contains a cycle")

// Block 表单定义树中的一个节点。树是扁平存储的：节点之间通过
// parentId/children 的 id 引用关联，而不是嵌套结构。
type Block struct {
	ID       string          `json:"id"`
	Type     BlockType       `json:"type"`
	ParentID string          `json:"parentId,omitempty"`
	Children []string        `json:"children,omitempty"`
	Content  json.RawMessage `json:"content,omitempty"`
}

// BlockContent 是 content 字段里本引擎关心的部分，其余键原样忽略。
type BlockContent struct {
	Title        string     `json:"title,omitempty"`
	Text         string     `json:"text,omitempty"`
	QuestionType string     `json:"questionType,omitempty"`
	Options      []string   `json:"options,omitempty"`
	Condition    *Condition `json:"condition,omitempty"`
}

// BlockTree 持有按作者排列顺序的块列表以及 id 索引。
// 对本子系统而言它是只读输入，由表单编辑端维护。
type BlockTree struct {
	Blocks []Block
	index  map[string]*Block
}

// NewBlockTree builds the id index over the authored block order.
// children 中引用但不存在的 id 不在这里校验，遍历时按"无此步骤"处理。
func NewBlockTree(blocks []Block) *BlockTree {
	t := &BlockTree{
		Blocks: blocks,
		index:  make(map[string]*Block, len(blocks)),
	}
	for i := range t.Blocks {
		t.index[t.Blocks[i].ID] = &t.Blocks[i]
	}
	return t
}

// ParseBlockTree 解析编辑端交付的 JSON：{"blocks":[...]}。
func ParseBlockTree(data []byte) (*BlockTree, error) {
	var payload struct {
		Blocks []Block `json:"blocks"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse block tree: %w", err)
	}
	return NewBlockTree(payload.Blocks), nil
}

// Lookup returns the block for an id, or nil when the id is dangling.
func (t *BlockTree) Lookup(id string) *Block {
	return t.index[id]
}

// Roots 返回没有父节点的块，保持作者排列顺序。
func (t *BlockTree) Roots() []*Block {
	var roots []*Block
	for i := range t.Blocks {
		if t.Blocks[i].ParentID == "" {
			roots = append(roots, &t.Blocks[i])
		}
	}
	return roots
}

// DecodeContent 解出 content 中引擎关心的字段；content 为空时返回零值。
func (b *Block) DecodeContent() BlockContent {
	var c BlockContent
	if len(b.Content) > 0 {
		// 非法 content 按空处理，不让单个脏块拖垮整棵树
		_ = json.Unmarshal(b.Content, &c)
	}
	return c
}

// MissingChildren 返回 children 中引用了但集合里不存在的 id，
// 仅用于诊断；扁平化本身对这类悬空引用保持宽容。
func (t *BlockTree) MissingChildren() []string {
	var missing []string
	seen := make(map[string]bool)
	for i := range t.Blocks {
		for _, childID := range t.Blocks[i].Children {
			if t.index[childID] == nil && !seen[childID] {
				seen[childID] = true
				missing = append(missing, childID)
			}
		}
	}
	return missing
}
