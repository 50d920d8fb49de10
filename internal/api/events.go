package api

import (
	"encoding/json"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"

	"github.com/pusherd/pusherd/internal/frame"
	"github.com/pusherd/pusherd/internal/httputil"
	"github.com/pusherd/pusherd/internal/hub"
	"github.com/pusherd/pusherd/internal/socketid"
)

// EventsHandler serves the HTTP publish endpoint.
type EventsHandler struct {
	hub *hub.Hub
	log zerolog.Logger
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(h *hub.Hub, logger zerolog.Logger) *EventsHandler {
	return &EventsHandler{hub: h, log: logger}
}

// publishRequest is the JSON body for POST /apps/:app_id/events.
type publishRequest struct {
	Name     string   `json:"name"`
	Data     any      `json:"data"`
	Channel  string   `json:"channel"`
	Channels []string `json:"channels"`
	SocketID string   `json:"socket_id"`
}

// Publish handles POST /apps/:app_id/events. It enqueues a Hub Broadcast to every channel named in the body.
func (h *EventsHandler) Publish(c fiber.Ctx) error {
	a := appFromLocals(c)

	var body publishRequest
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeBadRequest, "invalid request body")
	}
	if body.Name == "" {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeBadRequest, "name is required")
	}

	channels := body.Channels
	if body.Channel != "" {
		channels = append(channels, body.Channel)
	}
	if len(channels) == 0 {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeBadRequest, "channel or channels is required")
	}

	data, err := json.Marshal(body.Data)
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeBadRequest, "data is not valid JSON")
	}
	stringified, err := frame.Stringify(frame.Normalize(data))
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeBadRequest, "data is not valid JSON")
	}

	var except socketid.ID
	if body.SocketID != "" {
		except, err = socketid.Parse(body.SocketID)
		if err != nil {
			return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeBadRequest, "invalid socket_id")
		}
	}

	if err := h.hub.Broadcast(a.ID, channels, body.Name, stringified, except); err != nil {
		h.log.Error().Err(err).Int64("app_id", a.ID).Msg("failed to publish event")
		return httputil.Fail(c, fiber.StatusInternalServerError, httputil.CodeInternal, "an internal error occurred")
	}

	return httputil.Success(c, fiber.Map{})
}
