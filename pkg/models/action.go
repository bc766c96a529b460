package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ActionType discriminates the FlowAction union.
type ActionType string

const (
	ActionTypeSendMessage      ActionType = "send_message"
	ActionTypeSendQuickReplies ActionType = "send_quick_replies"
	ActionTypeCollectInput     ActionType = "collect_input"
	ActionTypeSetVariable      ActionType = "set_variable"
	ActionTypeHandoff          ActionType = "handoff"
	ActionTypeGotoNode         ActionType = "goto_node"
	ActionTypeAINode           ActionType = "ai_node"
	ActionTypeDelay            ActionType = "delay"
	ActionTypeHTTPRequest      ActionType = "http_request"
)

// ActionTypes lists every action kind the engine must be able to execute.
func ActionTypes() []ActionType {
	return []ActionType{
		ActionTypeSendMessage,
		ActionTypeSendQuickReplies,
		ActionTypeCollectInput,
		ActionTypeSetVariable,
		ActionTypeHandoff,
		ActionTypeGotoNode,
		ActionTypeAINode,
		ActionTypeDelay,
		ActionTypeHTTPRequest,
	}
}

var ErrUnknownActionType = errors.New("unknown action type")

// FlowAction is a single effect performed by a node. Config holds the
// type-specific payload exactly as authored; Decode turns it into one of the
// typed configs below.
type FlowAction struct {
	Type   ActionType      `json:"type"   validate:"required"`
	Config json.RawMessage `json:"config"`
}

// ActionConfig is implemented by every typed action configuration.
type ActionConfig interface {
	ActionType() ActionType
}

// NewFlowAction encodes a typed configuration into a FlowAction.
func NewFlowAction(config ActionConfig) (*FlowAction, error) {
	raw, err := json.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s config: %w", config.ActionType(), err)
	}

	return &FlowAction{Type: config.ActionType(), Config: raw}, nil
}

// Decode parses the raw configuration into the typed config for the action type.
func (a *FlowAction) Decode() (ActionConfig, error) {
	var config ActionConfig

	switch a.Type {
	case ActionTypeSendMessage:
		config = &SendMessageConfig{}
	case ActionTypeSendQuickReplies:
		config = &SendQuickRepliesConfig{}
	case ActionTypeCollectInput:
		config = &CollectInputConfig{}
	case ActionTypeSetVariable:
		config = &SetVariableConfig{}
	case ActionTypeHandoff:
		config = &HandoffConfig{}
	case ActionTypeGotoNode:
		config = &GotoNodeConfig{}
	case ActionTypeAINode:
		config = &AINodeConfig{}
	case ActionTypeDelay:
		config = &DelayConfig{}
	case ActionTypeHTTPRequest:
		config = &HTTPRequestConfig{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownActionType, a.Type)
	}

	if len(a.Config) > 0 && string(a.Config) != "null" {
		err := json.Unmarshal(a.Config, config)
		if err != nil {
			return nil, fmt.Errorf("invalid %s config: %w", a.Type, err)
		}
	}

	return config, nil
}

type SendMessageConfig struct {
	Message string `json:"message" validate:"required"`
}

func (SendMessageConfig) ActionType() ActionType { return ActionTypeSendMessage }

// QuickReply is a quick-reply button. Authored replies may be plain strings,
// in which case the title doubles as the payload.
type QuickReply struct {
	Title   string `json:"title"   validate:"required"`
	Payload string `json:"payload"`
}

func (q *QuickReply) UnmarshalJSON(data []byte) error {
	var title string
	if err := json.Unmarshal(data, &title); err == nil {
		q.Title = title
		q.Payload = title

		return nil
	}

	type plain QuickReply

	var reply plain

	err := json.Unmarshal(data, &reply)
	if err != nil {
		return err
	}

	if reply.Payload == "" {
		reply.Payload = reply.Title
	}

	*q = QuickReply(reply)

	return nil
}

type SendQuickRepliesConfig struct {
	Message string       `json:"message" validate:"required"`
	Replies []QuickReply `json:"replies" validate:"required,min=1,dive"`
}

func (SendQuickRepliesConfig) ActionType() ActionType { return ActionTypeSendQuickReplies }

type CollectInputConfig struct {
	Prompt    string `json:"prompt"    validate:"required"`
	InputName string `json:"inputName" validate:"required"`
}

func (CollectInputConfig) ActionType() ActionType { return ActionTypeCollectInput }

// SetVariableConfig writes Value to VariableName. Value is a string (interpolated)
// or any raw JSON value (stored as-is).
type SetVariableConfig struct {
	VariableName string `json:"variableName" validate:"required"`
	Value        any    `json:"value"`
}

func (SetVariableConfig) ActionType() ActionType { return ActionTypeSetVariable }

type HandoffConfig struct {
	Reason string `json:"reason"`
}

func (HandoffConfig) ActionType() ActionType { return ActionTypeHandoff }

type GotoNodeConfig struct {
	TargetNodeID string `json:"targetNodeId" validate:"required"`
}

func (GotoNodeConfig) ActionType() ActionType { return ActionTypeGotoNode }

// AIOperation selects what an ai_node asks the model to do.
type AIOperation string

const (
	AIOperationGenerateResponse AIOperation = "generate_response"
	AIOperationGenerateContent  AIOperation = "generate_content"
	AIOperationExtractData      AIOperation = "extract_data"
	AIOperationClassifyIntent   AIOperation = "classify_intent"
	AIOperationAnalyzeSentiment AIOperation = "analyze_sentiment"
	AIOperationSummarize        AIOperation = "summarize"
	AIOperationTranslate        AIOperation = "translate"
	AIOperationCustom           AIOperation = "custom"
)

type AINodeConfig struct {
	Operation                AIOperation    `json:"operation"                          validate:"required,oneof=generate_response generate_content extract_data classify_intent analyze_sentiment summarize translate custom"`
	Model                    string         `json:"model,omitempty"`
	Temperature              *float64       `json:"temperature,omitempty"              validate:"omitempty,gte=0,lte=2"`
	MaxTokens                int            `json:"maxTokens,omitempty"                validate:"omitempty,min=1"`
	SystemPrompt             string         `json:"systemPrompt,omitempty"`
	Prompt                   string         `json:"prompt,omitempty"`
	CustomPrompt             string         `json:"customPrompt,omitempty"`
	Input                    string         `json:"input,omitempty"`
	ExtractionSchema         map[string]any `json:"extractionSchema,omitempty"`
	ClassificationCategories []string       `json:"classificationCategories,omitempty"`
	TargetLanguage           string         `json:"targetLanguage,omitempty"`
	OutputVariable           string         `json:"outputVariable,omitempty"`
	SendAsMessage            *bool          `json:"sendAsMessage,omitempty"`
}

func (AINodeConfig) ActionType() ActionType { return ActionTypeAINode }

// ShouldSendAsMessage applies the per-operation default when sendAsMessage is unset.
func (c *AINodeConfig) ShouldSendAsMessage() bool {
	if c.SendAsMessage != nil {
		return *c.SendAsMessage
	}

	switch c.Operation {
	case AIOperationGenerateResponse, AIOperationGenerateContent, AIOperationCustom:
		return true
	default:
		return false
	}
}

// DelayUnit is the unit of a delay amount.
type DelayUnit string

const (
	DelayUnitMinutes DelayUnit = "minutes"
	DelayUnitHours   DelayUnit = "hours"
	DelayUnitDays    DelayUnit = "days"
)

type DelayConfig struct {
	DelayAmount int       `json:"delayAmount" validate:"gt=0"`
	DelayUnit   DelayUnit `json:"delayUnit"   validate:"required,oneof=minutes hours days"`
}

func (DelayConfig) ActionType() ActionType { return ActionTypeDelay }

// Duration converts the configured amount and unit into a time.Duration.
func (c *DelayConfig) Duration() time.Duration {
	amount := time.Duration(c.DelayAmount)

	switch c.DelayUnit {
	case DelayUnitMinutes:
		return amount * time.Minute
	case DelayUnitHours:
		return amount * time.Hour
	case DelayUnitDays:
		return amount * 24 * time.Hour
	default:
		return 0
	}
}

type HTTPRequestConfig struct {
	Method           string            `json:"method,omitempty"           validate:"omitempty,oneof=GET POST PUT PATCH DELETE HEAD"`
	URL              string            `json:"url"                        validate:"required"`
	Headers          map[string]string `json:"headers,omitempty"`
	Body             any               `json:"body,omitempty"`
	ResponseVariable string            `json:"responseVariable,omitempty"`
	TimeoutSeconds   int               `json:"timeoutSeconds,omitempty"   validate:"omitempty,min=1,max=30"`
}

func (HTTPRequestConfig) ActionType() ActionType { return ActionTypeHTTPRequest }
