package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dukex/chatflow/pkg/eventbus"
	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/registry"
	"github.com/dukex/chatflow/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// Conversations inspects and resets conversation execution states.
type Conversations interface {
	State(ctx context.Context, conversationID string) (*models.ConversationExecutionState, error)
	Reset(ctx context.Context, conversationID string) error
}

// WebhookConfig holds the Meta webhook secrets.
type WebhookConfig struct {
	// VerifyToken is compared with hub.verify_token on subscription.
	VerifyToken string

	// AppSecret, when set, is used to check X-Hub-Signature-256.
	AppSecret string
}

type APIHandlers struct {
	flowService   *services.Flows
	conversations Conversations
	validator     *validator.Validate
	registry      *registry.Registry
	publisher     eventbus.EventPublisher
	webhook       WebhookConfig
	newID         func() string
	logger        *slog.Logger
}

func NewAPIHandlers(
	logger *slog.Logger,
	flowService *services.Flows,
	conversations Conversations,
	validator *validator.Validate,
	registry *registry.Registry,
	publisher eventbus.EventPublisher,
	webhook WebhookConfig,
) *APIHandlers {
	return &APIHandlers{
		flowService:   flowService,
		conversations: conversations,
		validator:     validator,
		registry:      registry,
		publisher:     publisher,
		webhook:       webhook,
		newID:         newEventID,
		logger:        logger.With("module", "api"),
	}
}

// Register mounts every route of the API.
func (h *APIHandlers) Register(router fiber.Router) {
	router.Get("/health", h.HealthCheck)
	router.Get("/actions", h.GetActions)

	f := router.Group("/flows")
	f.Get("/", h.GetFlows)
	f.Post("/", h.CreateFlow)
	f.Post("/validate", h.ValidateFlow)
	f.Post("/import", h.ImportFlow)
	f.Get("/:id", h.GetFlow)
	f.Put("/:id", h.UpdateFlow)
	f.Delete("/:id", h.DeleteFlow)
	f.Patch("/:id/activation", h.SetFlowActivation)

	c := router.Group("/conversations")
	c.Get("/:id", h.GetConversation)
	c.Post("/:id/reset", h.ResetConversation)

	w := router.Group("/webhooks/meta")
	w.Get("/", h.VerifyMetaWebhook)
	w.Post("/", h.ReceiveMetaWebhook)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	registryCheck, regOk := h.registry.HealthCheck()
	repositoryCheck, repOk := h.flowService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Chatflow API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if regOk && repOk {
		status = "healthy"
		message = "Chatflow API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"registry":   registryCheck,
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) GetActions(c fiber.Ctx) error {
	factories := h.registry.Factories()

	actions := make([]ActionResponse, 0, len(factories))
	for _, factory := range factories {
		actions = append(actions, TransformActionResponse(factory))
	}

	return c.JSON(actions)
}

func (h *APIHandlers) GetFlows(c fiber.Ctx) error {
	flows, err := h.flowService.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"flows":       flows,
		"total_count": len(flows),
	})
}

func (h *APIHandlers) GetFlow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Flow ID is required")
	}

	flow, err := h.flowService.FetchByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(flow)
}

func (h *APIHandlers) CreateFlow(c fiber.Ctx) error {
	var flow models.FlowDefinition
	if err := c.Bind().JSON(&flow); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	created, err := h.flowService.Create(c.Context(), &flow)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateFlow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Flow ID is required")
	}

	var flow models.FlowDefinition
	if err := c.Bind().JSON(&flow); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	updated, err := h.flowService.Update(c.Context(), id, &flow)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteFlow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Flow ID is required")
	}

	err := h.flowService.Delete(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// ValidateFlow checks a flow document without storing it.
func (h *APIHandlers) ValidateFlow(c fiber.Ctx) error {
	var flow models.FlowDefinition
	if err := c.Bind().JSON(&flow); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	err := h.flowService.Validate(&flow)
	if err == nil {
		return c.JSON(ValidationResponse{Valid: true})
	}

	var validationErr *services.ValidationError
	if !errors.As(err, &validationErr) {
		return handleServiceError(c, err)
	}

	return c.JSON(ValidationResponse{Valid: false, Problems: validationErr.Problems})
}

// ImportFlow creates or updates a flow from a JSON or YAML document.
func (h *APIHandlers) ImportFlow(c fiber.Ctx) error {
	format := services.FormatJSON
	if strings.Contains(c.Get(fiber.HeaderContentType), "yaml") || c.Query("format") == string(services.FormatYAML) {
		format = services.FormatYAML
	}

	flow, err := h.flowService.Import(c.Context(), c.Body(), format)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(flow)
}

func (h *APIHandlers) SetFlowActivation(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Flow ID is required")
	}

	var req ActivationRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	flow, err := h.flowService.SetActive(c.Context(), id, *req.IsActive)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(flow)
}

func (h *APIHandlers) GetConversation(c fiber.Ctx) error {
	id, err := conversationID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	state, err := h.conversations.State(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(state)
}

// ResetConversation clears the execution state of a conversation, which also
// hands a handed-off conversation back to automation.
func (h *APIHandlers) ResetConversation(c fiber.Ctx) error {
	id, err := conversationID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	err = h.conversations.Reset(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

var errConversationIDRequired = errors.New("conversation ID is required")

func conversationID(c fiber.Ctx) (string, error) {
	id, err := url.PathUnescape(c.Params("id"))
	if err != nil {
		return "", err
	}

	if id == "" {
		return "", errConversationIDRequired
	}

	return id, nil
}
