package v1

import (
	"strconv"
	"time"

	"github.com/Vasteras-Stadsmission/matkassen-sub010/internal/constants"
	"github.com/Vasteras-Stadsmission/matkassen-sub010/internal/model"
	"github.com/Vasteras-Stadsmission/matkassen-sub010/internal/service"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Handler struct {
	logger     *zap.Logger
	validate   *validator.Validate
	messageSvc service.MessageService
	eventSvc   service.PickupEventService
	adminSvc   service.AdminService
	dispatcher service.DispatchService
}

func NewHandler(logger *zap.Logger, messageSvc service.MessageService, eventSvc service.PickupEventService,
	adminSvc service.AdminService, dispatcher service.DispatchService) *Handler {
	return &Handler{
		logger:     logger,
		validate:   validator.New(),
		messageSvc: messageSvc,
		eventSvc:   eventSvc,
		adminSvc:   adminSvc,
		dispatcher: dispatcher,
	}
}

func (h *Handler) Pong(c *fiber.Ctx) error {
	return c.SendString("pong")
}

func (h *Handler) CreateMessage(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var request CreateMessageRequest
	if err := h.parse(c, &request); err != nil {
		return err
	}

	var sendAt time.Time
	if request.SendAt != "" {
		parsed, err := time.Parse(time.RFC3339, request.SendAt)
		if err != nil {
			return badRequest(c, "send_at must be RFC 3339")
		}
		sendAt = parsed
	}

	cmd := service.CreateMessageCommand{
		Intent:         model.MessageIntent(request.Intent),
		PickupID:       request.PickupID,
		HouseholdRef:   request.HouseholdRef,
		Destination:    request.Destination,
		Text:           request.Text,
		IdempotencyKey: request.IdempotencyKey,
		SendAt:         sendAt,
	}

	resp, err := h.messageSvc.CreateMessage(ctx, cmd)
	if err != nil {
		h.logger.Error("failed to create message",
			zap.Error(err),
			zap.String("idempotencyKey", request.IdempotencyKey))
		return err
	}

	status := fiber.StatusCreated
	if resp.Duplicate {
		status = fiber.StatusOK
	}

	return c.Status(status).JSON(CreateMessageResponse{
		Status:    string(model.MessageStatusQueued),
		MessageID: resp.MessageID,
		Duplicate: resp.Duplicate,
	})
}

func (h *Handler) PickupDeleted(c *fiber.Ctx) error {
	var request PickupDeletedRequest
	if err := h.parse(c, &request); err != nil {
		return err
	}

	if err := h.eventSvc.PickupDeleted(c.UserContext(), service.PickupDeletedCommand{PickupID: request.PickupID}); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) PickupRescheduled(c *fiber.Ctx) error {
	var request PickupRescheduledRequest
	if err := h.parse(c, &request); err != nil {
		return err
	}

	earliest, err := time.Parse(time.RFC3339, request.NewEarliest)
	if err != nil {
		return badRequest(c, "new_earliest must be RFC 3339")
	}
	latest, err := time.Parse(time.RFC3339, request.NewLatest)
	if err != nil {
		return badRequest(c, "new_latest must be RFC 3339")
	}

	cmd := service.PickupRescheduledCommand{
		PickupID:    request.PickupID,
		NewEarliest: earliest,
		NewLatest:   latest,
	}

	if err := h.eventSvc.PickupRescheduled(c.UserContext(), cmd); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) ListFailures(c *fiber.Ctx) error {
	query := service.ListFailuresQuery{
		Limit:  c.QueryInt("limit", 20),
		Offset: c.QueryInt("offset", 0),
	}

	resp, err := h.adminSvc.ListFailures(c.UserContext(), query)
	if err != nil {
		return err
	}

	return c.JSON(resp)
}

func (h *Handler) RetryMessage(c *fiber.Ctx) error {
	id, err := messageID(c)
	if err != nil {
		return err
	}

	var request RetryMessageRequest
	if err := h.parse(c, &request); err != nil {
		return err
	}

	resp, err := h.adminSvc.RetryMessage(c.UserContext(), service.RetryMessageCommand{
		MessageID:   id,
		RequestedBy: request.RequestedBy,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(RetryMessageResponse{MessageID: resp.MessageID})
}

func (h *Handler) DismissMessage(c *fiber.Ctx) error {
	id, err := messageID(c)
	if err != nil {
		return err
	}

	var request DismissMessageRequest
	if err := h.parse(c, &request); err != nil {
		return err
	}

	if err := h.adminSvc.Dismiss(c.UserContext(), service.DismissMessageCommand{MessageID: id, By: request.By}); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) RestoreMessage(c *fiber.Ctx) error {
	id, err := messageID(c)
	if err != nil {
		return err
	}

	if err := h.adminSvc.Restore(c.UserContext(), id); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) RequeueBalance(c *fiber.Ctx) error {
	var request RequeueBalanceRequest
	if err := h.parse(c, &request); err != nil {
		return err
	}

	resp, err := h.adminSvc.RequeueBalanceFailures(c.UserContext(),
		service.RequeueBalanceCommand{RequestedBy: request.RequestedBy})
	if err != nil {
		return err
	}

	return c.JSON(resp)
}

func (h *Handler) TriggerDispatch(c *fiber.Ctx) error {
	result, err := h.dispatcher.Tick(c.UserContext())
	if err != nil {
		return err
	}

	return c.JSON(result)
}

func (h *Handler) ListIssues(c *fiber.Ctx) error {
	issues, err := h.adminSvc.Issues(c.UserContext())
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"issues": issues})
}

func (h *Handler) Anonymize(c *fiber.Ctx) error {
	var request AnonymizeRequest
	if err := h.parse(c, &request); err != nil {
		return err
	}

	count, err := h.messageSvc.AnonymizeHousehold(c.UserContext(), request.HouseholdRef)
	if err != nil {
		return err
	}

	return c.JSON(AnonymizeResponse{Anonymized: count})
}

func (h *Handler) parse(c *fiber.Ctx, request interface{}) error {
	if err := c.BodyParser(request); err != nil {
		h.logger.Warn("failed to parse body", zap.Error(err))
		return badRequest(c, constants.GetErrorMessage(constants.ErrCodeInvalidRequestBody))
	}

	if err := h.validate.Struct(request); err != nil {
		h.logger.Warn("request validation failed", zap.Error(err))
		return badRequest(c, err.Error())
	}

	return nil
}

func messageID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return 0, badRequest(c, "id must be an integer")
	}
	return id, nil
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"code":    constants.ErrCodeInvalidRequestBody,
		"message": message,
	})
}
