package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/crm-support/internal/api/dto"
	"github.com/spec-kit/crm-support/internal/auth"
	"github.com/spec-kit/crm-support/internal/domain"
	"github.com/spec-kit/crm-support/internal/repository"
	"github.com/spec-kit/crm-support/internal/service"
	"github.com/spec-kit/crm-support/pkg/apperrors"
)

// TicketsHandler exposes ticket lifecycle and read endpoints.
type TicketsHandler struct {
	lifecycle *service.LifecycleService
	queries   *service.QueryService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(lifecycle *service.LifecycleService, queries *service.QueryService) *TicketsHandler {
	return &TicketsHandler{lifecycle: lifecycle, queries: queries}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	customerID := req.CustomerID
	if principal, ok := auth.PrincipalFromContext(c); ok && principal.SubjectType == domain.SubjectTypeCustomer {
		customerID = principal.SubjectID
	}

	ticket, err := h.lifecycle.CreateTicket(c.UserContext(), req.Product, service.TicketCreateInput{
		CustomerID:  customerID,
		Subject:     req.Subject,
		Description: req.Description,
		Priority:    req.Priority,
		Category:    req.Category,
		Metadata:    req.Metadata,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.FromTicket(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	product := c.Query("product")
	if product == "" {
		return apperrors.NewValidationError("product query parameter required", nil)
	}

	filter := parseTicketQuery(c)
	if principal, ok := auth.PrincipalFromContext(c); ok && principal.SubjectType == domain.SubjectTypeCustomer {
		id := principal.SubjectID
		filter.CustomerID = &id
	}

	tickets, err := h.queries.ListTickets(c.UserContext(), product, filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.FromTicket(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.queries.GetTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTicket(ticket)})
}

// ListMessages GET /tickets/:id/messages.
func (h *TicketsHandler) ListMessages(c *fiber.Ctx) error {
	msgs, err := h.queries.ListMessages(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}

	hideInternal := false
	if principal, ok := auth.PrincipalFromContext(c); ok && principal.SubjectType == domain.SubjectTypeCustomer {
		hideInternal = true
	}
	items := make([]dto.MessageResponse, 0, len(msgs))
	for i := range msgs {
		if hideInternal && msgs[i].IsInternal {
			continue
		}
		items = append(items, dto.FromMessage(&msgs[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// AppendMessage POST /tickets/:id/messages.
func (h *TicketsHandler) AppendMessage(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if principal.SubjectType == domain.SubjectTypeCustomer && req.IsInternal {
		return apperrors.NewValidationError("customers cannot post internal notes", nil)
	}

	msg, err := h.lifecycle.AppendMessage(c.UserContext(), c.Params("id"), principal.SubjectID, req.IsInternal, req.Content)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.FromMessage(msg)})
}

// UpdateStatus PUT /tickets/:id/status.
func (h *TicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.lifecycle.UpdateStatus(c.UserContext(), c.Params("id"), req.Status, req.ExpectedRevision)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTicket(ticket)})
}

// UpdateTicket PATCH /tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.lifecycle.UpdateTicket(c.UserContext(), c.Params("id"), service.TicketUpdateInput{
		Subject:     req.Subject,
		Description: req.Description,
		Priority:    req.Priority,
		Category:    req.Category,
		AssignedTo:  req.AssignedTo,
	}, req.ExpectedRevision)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTicket(ticket)})
}

// RecordCsat PUT /tickets/:id/csat.
func (h *TicketsHandler) RecordCsat(c *fiber.Ctx) error {
	var req dto.RecordCsatRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.lifecycle.RecordCsat(c.UserContext(), c.Params("id"), req.Score)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTicket(ticket)})
}

// DeleteTicket DELETE /tickets/:id.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	var req dto.DeleteTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.lifecycle.SoftDelete(c.UserContext(), c.Params("id"), req.ExpectedRevision); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func parseTicketQuery(c *fiber.Ctx) repository.TicketFilter {
	filter := repository.TicketFilter{}

	if statuses := c.Query("status"); statuses != "" {
		for _, raw := range strings.Split(statuses, ",") {
			status := domain.TicketStatus(strings.ToUpper(strings.TrimSpace(raw)))
			if status.Valid() {
				filter.Statuses = append(filter.Statuses, status)
			}
		}
	}
	if priorities := c.Query("priority"); priorities != "" {
		for _, raw := range strings.Split(priorities, ",") {
			priority := domain.TicketPriority(strings.ToUpper(strings.TrimSpace(raw)))
			if priority.Valid() {
				filter.Priorities = append(filter.Priorities, priority)
			}
		}
	}
	if assignee := c.Query("assigned_to"); assignee != "" {
		filter.AssigneeID = &assignee
	}
	if customer := c.Query("customer_id"); customer != "" {
		filter.CustomerID = &customer
	}
	if category := c.Query("category"); category != "" {
		filter.Category = &category
	}
	if search := c.Query("q"); search != "" {
		filter.SearchTerm = &search
	}
	if limit, err := strconv.Atoi(c.Query("limit")); err == nil {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(c.Query("offset")); err == nil {
		filter.Offset = offset
	}
	return filter
}
