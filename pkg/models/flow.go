// Package models defines the flow definition and conversation execution models consumed by the engine.
package models

import "time"

// FlowType distinguishes regular automations from flows allowed to pre-empt them.
type FlowType string

const (
	FlowTypeAutomation FlowType = "automation"
	FlowTypeOverride   FlowType = "override"
)

// FlowDefinition is one published, immutable version of an authored automation graph.
type FlowDefinition struct {
	ID             string      `json:"id"                    validate:"required"`
	Name           string      `json:"name"                  validate:"required,min=1"`
	Description    string      `json:"description,omitempty"`
	FlowType       FlowType    `json:"flowType"              validate:"required,oneof=automation override"`
	Priority       int         `json:"priority"`
	IsActive       bool        `json:"isActive"`
	EntryNodeID    string      `json:"entryNodeId"           validate:"required"`
	GlobalTriggers []*Trigger  `json:"globalTriggers"        validate:"dive,required"`
	Nodes          []*FlowNode `json:"nodes"                 validate:"required,min=1,dive,required"`
	Version        int         `json:"version"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// Graph indexes the flow nodes by id. Nodes are never linked by pointer, so
// cycles created by goto_node are harmless to hold.
type Graph map[string]*FlowNode

// Graph builds the id index of the flow nodes.
func (f *FlowDefinition) Graph() Graph {
	graph := make(Graph, len(f.Nodes))
	for _, node := range f.Nodes {
		if node == nil {
			continue
		}

		graph[node.ID] = node
	}

	return graph
}

// Node returns the node with the given id.
func (f *FlowDefinition) Node(id string) (*FlowNode, bool) {
	for _, node := range f.Nodes {
		if node != nil && node.ID == id {
			return node, true
		}
	}

	return nil, false
}

// IsOverride reports whether the flow may pre-empt a running automation.
func (f *FlowDefinition) IsOverride() bool {
	return f.FlowType == FlowTypeOverride
}
