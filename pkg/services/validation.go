package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/dukex/chatflow/pkg/conditions"
	"github.com/dukex/chatflow/pkg/models"
	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"
)

// SchemaSource returns the JSON schema of an action config.
type SchemaSource interface {
	Schema(actionType models.ActionType) (map[string]any, bool)
}

// Validator checks flow definitions before they are published. It rejects
// anything the walker could not execute: dangling node references, a missing
// entry node, action configs that do not match their schema and conditions
// that can never evaluate.
type Validator struct {
	validate  *validator.Validate
	schemas   SchemaSource
	evaluator *conditions.Evaluator
}

func NewValidator(validate *validator.Validate, schemas SchemaSource) *Validator {
	if validate == nil {
		validate = validator.New(validator.WithRequiredStructEnabled())
	}

	return &Validator{
		validate:  validate,
		schemas:   schemas,
		evaluator: conditions.NewEvaluator(),
	}
}

// Validate returns a *ValidationError listing every problem of the flow.
func (v *Validator) Validate(flow *models.FlowDefinition) error {
	if flow == nil {
		return ErrFlowNil
	}

	var problems []string

	err := v.validate.Struct(flow)
	if err != nil {
		problems = append(problems, fieldProblems(err)...)
	}

	problems = append(problems, v.graphProblems(flow)...)

	if len(problems) > 0 {
		return &ValidationError{FlowID: flow.ID, Problems: problems}
	}

	return nil
}

func (v *Validator) graphProblems(flow *models.FlowDefinition) []string {
	var problems []string

	ids := make(map[string]bool, len(flow.Nodes))
	kinds := make(map[string]models.NodeKind, len(flow.Nodes))

	for _, node := range flow.Nodes {
		if node == nil {
			continue
		}

		if ids[node.ID] {
			problems = append(problems, fmt.Sprintf("duplicate node id %q", node.ID))
		} else {
			kinds[node.ID] = node.Kind
		}

		ids[node.ID] = true
	}

	switch {
	case flow.EntryNodeID == "":
	case !ids[flow.EntryNodeID]:
		problems = append(problems, fmt.Sprintf("entry node %q does not exist", flow.EntryNodeID))
	case kinds[flow.EntryNodeID] != models.NodeKindEntry:
		problems = append(problems, fmt.Sprintf("entry node %q has kind %q, want %q",
			flow.EntryNodeID, kinds[flow.EntryNodeID], models.NodeKindEntry))
	}

	for _, node := range flow.Nodes {
		if node == nil {
			continue
		}

		for _, next := range node.NextNodes {
			if !ids[next] {
				problems = append(problems, fmt.Sprintf("node %q references missing node %q", node.ID, next))
			}
		}

		if node.IsCondition() {
			if len(node.NextNodes) > 2 {
				problems = append(problems, fmt.Sprintf("condition node %q has more than two branches", node.ID))
			}

			if len(node.Actions) > 0 {
				problems = append(problems, fmt.Sprintf("condition node %q cannot run actions", node.ID))
			}
		}

		for _, condition := range node.Conditions {
			err := v.evaluator.Validate(condition)
			if err != nil {
				problems = append(problems, fmt.Sprintf("node %q: %v", node.ID, err))
			}
		}

		for index, action := range node.Actions {
			if action == nil {
				continue
			}

			for _, problem := range v.actionProblems(action, ids) {
				problems = append(problems, fmt.Sprintf("node %q action %d (%s): %s", node.ID, index, action.Type, problem))
			}
		}
	}

	for index, trigger := range flow.GlobalTriggers {
		if trigger != nil && trigger.Type == models.TriggerTypeRegex {
			_, err := regexp.Compile(trigger.Value)
			if err != nil {
				problems = append(problems, fmt.Sprintf("trigger %d: invalid regex: %v", index, err))
			}
		}
	}

	return problems
}

func (v *Validator) actionProblems(action *models.FlowAction, ids map[string]bool) []string {
	var problems []string

	if v.schemas != nil {
		if schema, ok := v.schemas.Schema(action.Type); ok {
			problems = append(problems, schemaProblems(schema, action.Config)...)
		}
	}

	config, err := action.Decode()
	if err != nil {
		return append(problems, err.Error())
	}

	err = v.validate.Struct(config)
	if err != nil {
		problems = append(problems, fieldProblems(err)...)
	}

	if goTo, ok := config.(*models.GotoNodeConfig); ok && goTo.TargetNodeID != "" && !ids[goTo.TargetNodeID] {
		problems = append(problems, fmt.Sprintf("goto target %q does not exist", goTo.TargetNodeID))
	}

	return problems
}

func schemaProblems(schema map[string]any, raw json.RawMessage) []string {
	document := raw
	if len(document) == 0 || string(document) == "null" {
		document = json.RawMessage("{}")
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewBytesLoader(document))
	if err != nil {
		return []string{"config is not valid JSON: " + err.Error()}
	}

	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, resultErr := range result.Errors() {
		problems = append(problems, resultErr.String())
	}

	return problems
}

func fieldProblems(err error) []string {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return []string{err.Error()}
	}

	problems := make([]string, 0, len(fieldErrors))

	for _, fieldErr := range fieldErrors {
		field := strings.TrimPrefix(fieldErr.Namespace(), "FlowDefinition.")

		switch fieldErr.Tag() {
		case "required":
			problems = append(problems, field+" is required")
		case "oneof":
			problems = append(problems, fmt.Sprintf("%s must be one of [%s]", field, fieldErr.Param()))
		default:
			problems = append(problems, fmt.Sprintf("%s failed %s=%s", field, fieldErr.Tag(), fieldErr.Param()))
		}
	}

	return problems
}
