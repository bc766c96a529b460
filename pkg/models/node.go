package models

// NodeKind is the role of a node in the flow graph.
type NodeKind string

const (
	NodeKindEntry     NodeKind = "entry"
	NodeKindMessage   NodeKind = "message"
	NodeKindCondition NodeKind = "condition"
	NodeKindAction    NodeKind = "action"
	NodeKindAINode    NodeKind = "ai_node"
	NodeKindExit      NodeKind = "exit"
)

// Position is editor-only layout information; the engine ignores it.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// FlowNode is a step in the flow graph.
type FlowNode struct {
	ID         string           `json:"id"                   validate:"required"`
	Name       string           `json:"name"`
	Kind       NodeKind         `json:"kind"                 validate:"required,oneof=entry message condition action ai_node exit"`
	Actions    []*FlowAction    `json:"actions,omitempty"    validate:"dive,required"`
	Conditions []*FlowCondition `json:"conditions,omitempty" validate:"dive,required"`
	NextNodes  []string         `json:"nextNodes,omitempty"`
	Position   *Position        `json:"position,omitempty"`
}

// IsCondition reports whether the node branches on its conditions.
func (n *FlowNode) IsCondition() bool {
	return n.Kind == NodeKindCondition
}

// Next returns the node id at the given outgoing edge index, or "" when absent.
func (n *FlowNode) Next(index int) string {
	if index < 0 || index >= len(n.NextNodes) {
		return ""
	}

	return n.NextNodes[index]
}

// TrueBranch is the target of a condition node when its conditions hold.
func (n *FlowNode) TrueBranch() string {
	return n.Next(0)
}

// FalseBranch is the target of a condition node when its conditions fail.
func (n *FlowNode) FalseBranch() string {
	return n.Next(1)
}
