package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/Tyrowin/messenger/internal/config"
	"github.com/Tyrowin/messenger/internal/entities"
)

// Handlers maps HTTP routes onto the messaging service. They hold no business
// logic of their own.
type Handlers struct {
	messenger   Messenger
	hub         *Hub
	upgrader    websocket.Upgrader
	socket      config.SocketConfig
	page        *bootstrapPage
	currentUser string
	log         zerolog.Logger
}

// NewHandlers wires the handlers. currentUser is the user the bootstrap page is
// rendered for.
func NewHandlers(messenger Messenger, hub *Hub, cfg *config.Config, currentUser string, log zerolog.Logger) (*Handlers, error) {
	page, err := newBootstrapPage(cfg.Server.IndexTemplate)
	if err != nil {
		return nil, err
	}

	origins := NewOriginPolicy(cfg.Server.AllowedOrigins, log)

	return &Handlers{
		messenger: messenger,
		hub:       hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.Check,
		},
		socket:      cfg.Socket,
		page:        page,
		currentUser: currentUser,
		log:         log,
	}, nil
}

type errorResponse struct {
	Message string `json:"message"`
}

// pathParam returns a decoded path parameter. Echo hands back raw segments when
// the request path carried escapes that differ from the default encoding.
func pathParam(c echo.Context, name string) string {
	value := c.Param(name)
	if c.Request().URL.RawPath == "" {
		return value
	}
	if decoded, err := url.PathUnescape(value); err == nil {
		return decoded
	}
	return value
}

// statusFor translates service errors into response codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, entities.ErrInvalidArgument):
		return http.StatusForbidden
	case errors.Is(err, entities.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) respondError(c echo.Context, err error) error {
	status := statusFor(err)
	h.log.Debug().Err(err).Int("status", status).Str("path", c.Path()).Msg("operation rejected")
	return c.NoContent(status)
}

// CreateChannel handles /channel/create/:channelID/:name/:participants, where
// participants is a JSON array of user ids. It answers 300 with the channel.
func (h *Handlers) CreateChannel(c echo.Context) error {
	var participants []string
	if err := json.Unmarshal([]byte(pathParam(c, "participants")), &participants); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Message: "participants must be a JSON array of user ids"})
	}

	channel := h.messenger.CreateChannel(pathParam(c, "channelID"), pathParam(c, "name"), participants)
	return c.JSON(http.StatusMultipleChoices, channel)
}

// GetChannel handles /channel/:id. An unknown id yields an empty body.
func (h *Handlers) GetChannel(c echo.Context) error {
	channel, ok := h.messenger.Channel(pathParam(c, "id"))
	if !ok {
		return c.NoContent(http.StatusOK)
	}
	return c.JSON(http.StatusOK, channel)
}

// SetActiveChannel handles /user/activeChannel/:userID/:channelID.
func (h *Handlers) SetActiveChannel(c echo.Context) error {
	if err := h.messenger.SetActiveChannel(pathParam(c, "userID"), pathParam(c, "channelID")); err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, true)
}

// GetUser handles /user/:id and returns only the user's name and id.
func (h *Handlers) GetUser(c echo.Context) error {
	user, ok := h.messenger.User(pathParam(c, "id"))
	if !ok {
		return c.NoContent(http.StatusOK)
	}
	return c.JSON(http.StatusOK, user.Summary())
}

// SetStatus handles /status/:id/:status.
func (h *Handlers) SetStatus(c echo.Context) error {
	status := entities.Status(pathParam(c, "status"))
	if err := h.messenger.SetStatus(pathParam(c, "id"), status); err != nil {
		return h.respondError(c, err)
	}
	return c.NoContent(http.StatusOK)
}

// PostMessage handles /input/submit/:userID/:channelID/:messageID/:input and
// answers 300 once the message is stored and broadcast.
func (h *Handlers) PostMessage(c echo.Context) error {
	_, err := h.messenger.PostMessage(
		pathParam(c, "userID"),
		pathParam(c, "channelID"),
		pathParam(c, "messageID"),
		pathParam(c, "input"),
	)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.NoContent(http.StatusMultipleChoices)
}

// Health provides a simple health check endpoint.
func (h *Handlers) Health(c echo.Context) error {
	return c.String(http.StatusOK, "Messenger server is running!")
}

// WebSocket upgrades the request and registers the connection with the hub,
// which starts the client's read and write pumps.
func (h *Handlers) WebSocket(c echo.Context) error {
	r := c.Request()
	if r.Method != http.MethodGet {
		return c.String(http.StatusMethodNotAllowed, "Method not allowed. WebSocket endpoint only accepts GET requests.")
	}

	conn, err := h.upgrader.Upgrade(c.Response(), r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return nil
	}

	client := NewClient(conn, h.hub, h.messenger, r.RemoteAddr, h.socket)
	if !h.hub.Register(client) {
		h.log.Warn().Str("addr", r.RemoteAddr).Msg("hub stopped; closing connection")
		_ = conn.Close()
	}
	return nil
}
