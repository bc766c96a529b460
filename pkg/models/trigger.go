package models

// TriggerType is the kind of rule a trigger applies to an inbound message.
type TriggerType string

const (
	TriggerTypeKeyword TriggerType = "keyword"
	TriggerTypeIntent  TriggerType = "intent"
	TriggerTypeRegex   TriggerType = "regex"
	TriggerTypeEvent   TriggerType = "event"
)

// MatchMode controls how keyword, intent and event triggers compare text.
type MatchMode string

const (
	MatchModeExact      MatchMode = "exact"
	MatchModeContains   MatchMode = "contains"
	MatchModeStartsWith MatchMode = "starts_with"
	MatchModeEndsWith   MatchMode = "ends_with"
)

// Trigger activates a flow from an inbound message. Triggers of a flow are OR-ed.
type Trigger struct {
	Type          TriggerType `json:"type"                validate:"required,oneof=keyword intent regex event"`
	Value         string      `json:"value"               validate:"required"`
	MatchMode     MatchMode   `json:"matchMode,omitempty" validate:"omitempty,oneof=exact contains starts_with ends_with"`
	CaseSensitive bool        `json:"caseSensitive"`
}

// Mode returns the configured match mode, defaulting to contains.
func (t *Trigger) Mode() MatchMode {
	if t.MatchMode == "" {
		return MatchModeContains
	}

	return t.MatchMode
}
