package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/qr-attendance-api/internal/dto"
	"github.com/noah-isme/qr-attendance-api/internal/middleware"
	"github.com/noah-isme/qr-attendance-api/internal/service"
	"github.com/noah-isme/qr-attendance-api/internal/utils"
)

// AttendanceHandler wires check-in and attendance history routes.
type AttendanceHandler struct {
	service service.AttendanceService
	logger  zerolog.Logger
}

// NewAttendanceHandler constructs the handler.
func NewAttendanceHandler(service service.AttendanceService, logger zerolog.Logger) *AttendanceHandler {
	return &AttendanceHandler{
		service: service,
		logger:  logger.With().Str("component", "attendance_handler").Logger(),
	}
}

// Register attaches attendance endpoints. markLimiter is optional.
func (h *AttendanceHandler) Register(router fiber.Router, markLimiter fiber.Handler) {
	anyUser := middleware.AuthOptions{Role: middleware.AuthRoleAny}

	mark := middleware.WithAuth(h.mark, anyUser)
	if markLimiter != nil {
		router.Post("", markLimiter, mark)
	} else {
		router.Post("", mark)
	}
	router.Get("/me", middleware.WithAuth(h.mine, anyUser))
	router.Get("/session/:id", middleware.WithAuth(h.bySession, anyUser))
	router.Get("/user/:id", middleware.WithAuth(h.byUser, middleware.AuthOptions{SelfParam: "id"}))
}

func (h *AttendanceHandler) mark(c *fiber.Ctx) error {
	var req dto.AttendanceMarkRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	record, err := h.service.Mark(c.UserContext(), req, actorFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "mark_attendance")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "attendance recorded", record)
}

func (h *AttendanceHandler) mine(c *fiber.Ctx) error {
	records, err := h.service.ListMine(c.UserContext(), actorFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "list_my_attendance")
	}
	return utils.SendSuccess(c, "attendance retrieved", records)
}

func (h *AttendanceHandler) bySession(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	records, err := h.service.ListBySession(c.UserContext(), id, actorFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "list_session_attendance")
	}
	return utils.SendSuccess(c, "attendance retrieved", records)
}

func (h *AttendanceHandler) byUser(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	records, err := h.service.ListByUser(c.UserContext(), id, actorFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "list_user_attendance")
	}
	return utils.SendSuccess(c, "attendance retrieved", records)
}
