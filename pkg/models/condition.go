package models

// FlowCondition is either a legacy expression string or a structured condition group.
// When both are set the condition group is authoritative.
type FlowCondition struct {
	Expression     string          `json:"expression,omitempty"`
	ConditionGroup *ConditionGroup `json:"conditionGroup,omitempty"`
}

// ConditionLogic combines the conditions of a group.
type ConditionLogic string

const (
	ConditionLogicAnd ConditionLogic = "and"
	ConditionLogicOr  ConditionLogic = "or"
)

// ConditionGroup is the structured condition format.
type ConditionGroup struct {
	Logic      ConditionLogic     `json:"logic"      validate:"required,oneof=and or"`
	Conditions []*SingleCondition `json:"conditions" validate:"dive,required"`
}

// Operator compares a variable against a value.
type Operator string

const (
	OperatorEquals      Operator = "equals"
	OperatorNotEquals   Operator = "not_equals"
	OperatorContains    Operator = "contains"
	OperatorNotContains Operator = "not_contains"
	OperatorStartsWith  Operator = "starts_with"
	OperatorEndsWith    Operator = "ends_with"
	OperatorGreaterThan Operator = "greater_than"
	OperatorLessThan    Operator = "less_than"
	OperatorIsEmpty     Operator = "is_empty"
	OperatorIsNotEmpty  Operator = "is_not_empty"
)

// SingleCondition tests one variable of the conversation.
type SingleCondition struct {
	Variable string   `json:"variable" validate:"required"`
	Operator Operator `json:"operator" validate:"required,oneof=equals not_equals contains not_contains starts_with ends_with greater_than less_than is_empty is_not_empty"`
	Value    string   `json:"value"`
}
