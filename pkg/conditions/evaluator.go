// Package conditions evaluates the branch conditions of condition nodes.
// Evaluation never fails: malformed or unknown conditions are false.
package conditions

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/variables"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Legacy expression prefixes.
const (
	PrefixContains = "contains:"
	PrefixEquals   = "equals:"
	PrefixRegex    = "regex:"
	PrefixExpr     = "expr:"
)

var ErrUnknownPrefix = errors.New("unknown condition prefix")

// Evaluator evaluates FlowConditions. Compiled regular expressions and expr
// programs are cached, so one Evaluator should be shared by the engine.
type Evaluator struct {
	regexps  sync.Map // string -> *regexp.Regexp
	programs sync.Map // string -> *vm.Program
}

func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// EvaluateAll reports whether every condition of a node holds. A node
// without conditions takes its false branch.
func (e *Evaluator) EvaluateAll(conditions []*models.FlowCondition, vars *variables.Store, lastUserMessage string) bool {
	if len(conditions) == 0 {
		return false
	}

	for _, condition := range conditions {
		if !e.Evaluate(condition, vars, lastUserMessage) {
			return false
		}
	}

	return true
}

// Evaluate evaluates a single condition. The condition group wins when both
// formats are present.
func (e *Evaluator) Evaluate(condition *models.FlowCondition, vars *variables.Store, lastUserMessage string) bool {
	if condition == nil {
		return false
	}

	if condition.ConditionGroup != nil {
		return e.evaluateGroup(condition.ConditionGroup, vars)
	}

	return e.evaluateExpression(condition.Expression, vars, lastUserMessage)
}

func (e *Evaluator) evaluateExpression(expression string, vars *variables.Store, lastUserMessage string) bool {
	switch {
	case strings.HasPrefix(expression, PrefixContains):
		needle := strings.TrimPrefix(expression, PrefixContains)

		return strings.Contains(strings.ToLower(lastUserMessage), strings.ToLower(needle))
	case strings.HasPrefix(expression, PrefixEquals):
		target := strings.TrimPrefix(expression, PrefixEquals)

		return strings.EqualFold(strings.TrimSpace(lastUserMessage), strings.TrimSpace(target))
	case strings.HasPrefix(expression, PrefixRegex):
		re, err := e.compileRegexp(strings.TrimPrefix(expression, PrefixRegex))
		if err != nil {
			return false
		}

		return re.MatchString(lastUserMessage)
	case strings.HasPrefix(expression, PrefixExpr):
		return e.evaluateExpr(strings.TrimPrefix(expression, PrefixExpr), vars, lastUserMessage)
	default:
		return false
	}
}

func (e *Evaluator) evaluateExpr(source string, vars *variables.Store, lastUserMessage string) bool {
	program, err := e.compileProgram(source)
	if err != nil {
		return false
	}

	output, err := expr.Run(program, exprEnv(vars.Snapshot(), lastUserMessage))
	if err != nil {
		return false
	}

	result, ok := output.(bool)

	return ok && result
}

func (e *Evaluator) evaluateGroup(group *models.ConditionGroup, vars *variables.Store) bool {
	if len(group.Conditions) == 0 {
		return false
	}

	for _, condition := range group.Conditions {
		matched := EvaluateSingle(condition, vars)

		if group.Logic == models.ConditionLogicOr && matched {
			return true
		}

		if group.Logic != models.ConditionLogicOr && !matched {
			return false
		}
	}

	return group.Logic != models.ConditionLogicOr
}

// EvaluateSingle applies one operator to a variable of the store. String
// operators compare exactly; missing variables compare as the empty string.
func EvaluateSingle(condition *models.SingleCondition, vars *variables.Store) bool {
	if condition == nil {
		return false
	}

	value, present := vars.Get(condition.Variable)
	actual := variables.Stringify(value)
	expected := condition.Value

	switch condition.Operator {
	case models.OperatorIsEmpty:
		return !present || strings.TrimSpace(actual) == ""
	case models.OperatorIsNotEmpty:
		return present && strings.TrimSpace(actual) != ""
	case models.OperatorEquals:
		return actual == expected
	case models.OperatorNotEquals:
		return actual != expected
	case models.OperatorContains:
		return strings.Contains(actual, expected)
	case models.OperatorNotContains:
		return !strings.Contains(actual, expected)
	case models.OperatorStartsWith:
		return strings.HasPrefix(actual, expected)
	case models.OperatorEndsWith:
		return strings.HasSuffix(actual, expected)
	case models.OperatorGreaterThan:
		left, right, ok := numbers(actual, expected)

		return ok && left > right
	case models.OperatorLessThan:
		left, right, ok := numbers(actual, expected)

		return ok && left < right
	default:
		return false
	}
}

// Validate reports conditions that can never evaluate as authored: invalid
// regular expressions, expr programs that do not compile, unknown prefixes.
func (e *Evaluator) Validate(condition *models.FlowCondition) error {
	if condition == nil || condition.ConditionGroup != nil {
		return nil
	}

	expression := condition.Expression

	switch {
	case expression == "":
		return nil
	case strings.HasPrefix(expression, PrefixContains), strings.HasPrefix(expression, PrefixEquals):
		return nil
	case strings.HasPrefix(expression, PrefixRegex):
		_, err := e.compileRegexp(strings.TrimPrefix(expression, PrefixRegex))

		return err
	case strings.HasPrefix(expression, PrefixExpr):
		_, err := e.compileProgram(strings.TrimPrefix(expression, PrefixExpr))

		return err
	default:
		return fmt.Errorf("%w: %q", ErrUnknownPrefix, expression)
	}
}

func (e *Evaluator) compileRegexp(pattern string) (*regexp.Regexp, error) {
	if cached, ok := e.regexps.Load(pattern); ok {
		return cached.(*regexp.Regexp), nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex %q: %w", pattern, err)
	}

	e.regexps.Store(pattern, re)

	return re, nil
}

func (e *Evaluator) compileProgram(source string) (*vm.Program, error) {
	if cached, ok := e.programs.Load(source); ok {
		return cached.(*vm.Program), nil
	}

	program, err := expr.Compile(source,
		expr.Env(exprEnv(map[string]any{}, "")),
		expr.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid expression %q: %w", source, err)
	}

	e.programs.Store(source, program)

	return program, nil
}

func exprEnv(vars map[string]any, lastUserMessage string) map[string]any {
	return map[string]any{
		"message": lastUserMessage,
		"vars":    vars,
	}
}

func numbers(left, right string) (float64, float64, bool) {
	l, err := strconv.ParseFloat(strings.TrimSpace(left), 64)
	if err != nil {
		return 0, 0, false
	}

	r, err := strconv.ParseFloat(strings.TrimSpace(right), 64)
	if err != nil {
		return 0, 0, false
	}

	return l, r, true
}
