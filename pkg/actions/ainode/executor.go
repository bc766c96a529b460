// Package ainode implements the ai_node action.
package ainode

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/protocol"
)

// Executor runs ai_node actions against the AI provider. Calls are retried
// by the retry policy; an exhausted call surfaces as an ExternalCallError.
type Executor struct {
	client       protocol.AIClient
	retry        protocol.RetryPolicy
	defaultModel string
}

func NewExecutor(client protocol.AIClient, retry protocol.RetryPolicy, defaultModel string) *Executor {
	return &Executor{client: client, retry: retry, defaultModel: defaultModel}
}

func (e *Executor) Execute(ctx context.Context, config models.ActionConfig, execCtx *protocol.ExecutionContext) (*protocol.Result, error) {
	cfg, ok := config.(*models.AINodeConfig)
	if !ok {
		return nil, protocol.UnexpectedConfig(models.ActionTypeAINode, config)
	}

	req, err := e.buildRequest(cfg, execCtx)
	if err != nil {
		return nil, err
	}

	resp, err := e.complete(ctx, req)
	if err != nil {
		return nil, protocol.NewExternalCallError(protocol.CallKindAI, execCtx, err)
	}

	execCtx.Logger.InfoContext(ctx, "AI operation completed", "operation", cfg.Operation, "model", req.Model)

	result := &protocol.Result{}

	if cfg.OutputVariable != "" {
		result.VariableWrites = map[string]any{cfg.OutputVariable: outputValue(cfg, resp)}
	}

	text := strings.TrimSpace(resp.Text)
	if cfg.ShouldSendAsMessage() && text != "" {
		result.OutboundMessages = []*models.OutboundMessage{execCtx.Text(text)}
	}

	return result, nil
}

func (e *Executor) complete(ctx context.Context, req *protocol.AIRequest) (*protocol.AIResponse, error) {
	var resp *protocol.AIResponse

	call := func(ctx context.Context) error {
		var err error

		resp, err = e.client.Complete(ctx, req)

		return err
	}

	var err error
	if e.retry == nil {
		err = call(ctx)
	} else {
		err = e.retry.Do(ctx, call)
	}

	if err != nil {
		return nil, err
	}

	return resp, nil
}

func (e *Executor) buildRequest(cfg *models.AINodeConfig, execCtx *protocol.ExecutionContext) (*protocol.AIRequest, error) {
	model := cfg.Model
	if model == "" {
		model = e.defaultModel
	}

	input := execCtx.LastUserMessage
	if cfg.Input != "" {
		input = execCtx.Render(cfg.Input)
	}

	req := &protocol.AIRequest{
		Operation:    cfg.Operation,
		Model:        model,
		Temperature:  cfg.Temperature,
		MaxTokens:    cfg.MaxTokens,
		SystemPrompt: execCtx.Render(cfg.SystemPrompt),
	}

	instruction := execCtx.Render(cfg.Prompt)

	switch cfg.Operation {
	case models.AIOperationGenerateResponse:
		req.Prompt = joinPrompt(instruction, "Customer message:", input)
	case models.AIOperationGenerateContent:
		req.Prompt = joinPrompt(instruction, "", "")
		if req.Prompt == "" {
			req.Prompt = input
		}
	case models.AIOperationExtractData:
		schema, err := json.Marshal(cfg.ExtractionSchema)
		if err != nil {
			return nil, fmt.Errorf("invalid extraction schema: %w", err)
		}

		req.Schema = cfg.ExtractionSchema
		req.Prompt = joinPrompt(
			"Extract the data described by this JSON schema from the text. Answer with JSON only.\n"+string(schema),
			"Text:", input)
	case models.AIOperationClassifyIntent:
		req.Prompt = joinPrompt(
			"Classify the intent of the text into exactly one of these categories: "+
				strings.Join(cfg.ClassificationCategories, ", ")+". Answer with the category only.",
			"Text:", input)
	case models.AIOperationAnalyzeSentiment:
		req.Prompt = joinPrompt("Classify the sentiment of the text as positive, negative or neutral. Answer with one word.",
			"Text:", input)
	case models.AIOperationSummarize:
		req.Prompt = joinPrompt(orDefault(instruction, "Summarize the text in a few sentences."), "Text:", input)
	case models.AIOperationTranslate:
		if cfg.TargetLanguage == "" {
			return nil, ErrMissingTargetLanguage
		}

		req.Prompt = joinPrompt("Translate the text into "+cfg.TargetLanguage+". Answer with the translation only.",
			"Text:", input)
	case models.AIOperationCustom:
		req.Prompt = orDefault(execCtx.Render(cfg.CustomPrompt), instruction)
		if req.Prompt == "" {
			return nil, ErrMissingCustomPrompt
		}
	default:
		return nil, fmt.Errorf("unsupported AI operation %q", cfg.Operation)
	}

	return req, nil
}

// outputValue picks what is stored in the output variable for an operation.
func outputValue(cfg *models.AINodeConfig, resp *protocol.AIResponse) any {
	switch cfg.Operation {
	case models.AIOperationExtractData:
		if resp.Structured != nil {
			return resp.Structured
		}

		var parsed any
		if err := json.Unmarshal([]byte(strings.TrimSpace(resp.Text)), &parsed); err == nil {
			return parsed
		}

		return resp.Text
	case models.AIOperationClassifyIntent:
		return matchCategory(resp.Text, cfg.ClassificationCategories)
	case models.AIOperationAnalyzeSentiment:
		return strings.ToLower(strings.Trim(strings.TrimSpace(resp.Text), ".!"))
	default:
		return strings.TrimSpace(resp.Text)
	}
}

// matchCategory maps a free-form answer onto the configured category spelling.
func matchCategory(answer string, categories []string) string {
	answer = strings.Trim(strings.TrimSpace(answer), ".!\"'")

	for _, category := range categories {
		if strings.EqualFold(answer, category) {
			return category
		}
	}

	for _, category := range categories {
		if strings.Contains(strings.ToLower(answer), strings.ToLower(category)) {
			return category
		}
	}

	return answer
}

func joinPrompt(instruction, label, input string) string {
	parts := make([]string, 0, 2)

	if strings.TrimSpace(instruction) != "" {
		parts = append(parts, strings.TrimSpace(instruction))
	}

	if strings.TrimSpace(input) != "" {
		if label != "" {
			input = label + "\n" + input
		}

		parts = append(parts, input)
	}

	return strings.Join(parts, "\n\n")
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return value
}
