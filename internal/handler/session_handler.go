package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/qr-attendance-api/internal/dto"
	"github.com/noah-isme/qr-attendance-api/internal/middleware"
	"github.com/noah-isme/qr-attendance-api/internal/service"
	"github.com/noah-isme/qr-attendance-api/internal/utils"
)

// SessionHandler wires session lifecycle routes and the live check-in feed.
type SessionHandler struct {
	sessions   service.SessionService
	attendance service.AttendanceService
	feed       service.LiveFeed
	qrSize     int
	logger     zerolog.Logger
}

// NewSessionHandler constructs the handler. feed may be nil, in which case
// the live endpoint is not registered.
func NewSessionHandler(sessions service.SessionService, attendance service.AttendanceService, feed service.LiveFeed, qrSize int, logger zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		sessions:   sessions,
		attendance: attendance,
		feed:       feed,
		qrSize:     qrSize,
		logger:     logger.With().Str("component", "session_handler").Logger(),
	}
}

// Register attaches session endpoints to the router group.
func (h *SessionHandler) Register(router fiber.Router) {
	anyUser := middleware.AuthOptions{Role: middleware.AuthRoleAny}
	adminOnly := middleware.AuthOptions{Role: middleware.AuthRoleAdmin}

	router.Post("", middleware.WithAuth(h.create, adminOnly))
	router.Get("", middleware.WithAuth(h.list, anyUser))
	router.Get("/active", middleware.WithAuth(h.active, anyUser))
	router.Get("/:id", middleware.WithAuth(h.get, anyUser))
	router.Get("/:id/qr", middleware.WithAuth(h.qr, adminOnly))
	router.Get("/:id/summary", middleware.WithAuth(h.summary, adminOnly))
	router.Put("/:id/expire", middleware.WithAuth(h.expire, adminOnly))

	if h.feed != nil {
		router.Get("/:id/live", middleware.WithAuth(h.upgrade, adminOnly), websocket.New(h.live))
	}
}

func (h *SessionHandler) create(c *fiber.Ctx) error {
	var req dto.SessionCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	session, err := h.sessions.Create(c.UserContext(), req, actorFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "create_session")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "session created", session)
}

func (h *SessionHandler) list(c *fiber.Ctx) error {
	page, pageSize, err := parsePagination(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	active, err := parseQueryBool(c, "active")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.sessions.List(c.UserContext(), dto.SessionListRequest{
		Page:     page,
		PageSize: pageSize,
		Active:   active,
	})
	if err != nil {
		return respondError(c, h.logger, err, "list_sessions")
	}
	return utils.OK(c, result.Items, "sessions retrieved", result.Pagination)
}

func (h *SessionHandler) active(c *fiber.Ctx) error {
	session, err := h.sessions.GetActive(c.UserContext())
	if err != nil {
		return respondError(c, h.logger, err, "active_session")
	}
	return utils.SendSuccess(c, "active session retrieved", session)
}

func (h *SessionHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	session, err := h.sessions.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.logger, err, "get_session")
	}
	return utils.SendSuccess(c, "session retrieved", session)
}

func (h *SessionHandler) qr(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	size := h.qrSize
	if requested, err := parseQueryInt(c, "size"); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	} else if requested > 0 {
		size = requested
	}

	png, err := h.sessions.QRCode(c.UserContext(), id, size)
	if err != nil {
		return respondError(c, h.logger, err, "session_qr")
	}

	c.Set(fiber.HeaderContentType, "image/png")
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(png)
}

func (h *SessionHandler) summary(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	summary, err := h.attendance.SessionSummary(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.logger, err, "session_summary")
	}
	return utils.SendSuccess(c, "session summary retrieved", summary)
}

func (h *SessionHandler) expire(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.sessions.Expire(c.UserContext(), id, service.ExpireTriggerExplicit, actorFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "expire_session")
	}
	return utils.SendSuccess(c, "session expired", result)
}

func (h *SessionHandler) upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	if _, err := h.sessions.Get(c.UserContext(), id); err != nil {
		return respondError(c, h.logger, err, "live_session")
	}

	c.Locals("session_id", id)
	return c.Next()
}

func (h *SessionHandler) live(conn *websocket.Conn) {
	sessionID, ok := conn.Locals("session_id").(uint)
	if !ok {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseUnsupportedData, "session id missing"))
		_ = conn.Close()
		return
	}

	events, unsubscribe := h.feed.Subscribe(sessionID)
	defer unsubscribe()

	logger := h.logger.With().Uint("session_id", sessionID).Uint("user_id", websocketUserID(conn)).Logger()
	logger.Info().Msg("live feed connected")
	defer logger.Info().Msg("live feed disconnected")

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				logger.Debug().Err(err).Msg("live feed write failed")
				return
			}
			if event.Type == dto.EventSessionClosed {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
				return
			}
		}
	}
}

func websocketUserID(conn *websocket.Conn) uint {
	if id, ok := conn.Locals("user_id").(uint); ok {
		return id
	}
	return 0
}
