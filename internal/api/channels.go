package api

import (
	"github.com/gofiber/fiber/v3"

	"github.com/pusherd/pusherd/internal/channelpolicy"
	"github.com/pusherd/pusherd/internal/hub"
	"github.com/pusherd/pusherd/internal/httputil"
)

// ChannelsHandler serves the per-app channel introspection endpoints.
type ChannelsHandler struct {
	hub *hub.Hub
}

// NewChannelsHandler creates a new channels handler.
func NewChannelsHandler(h *hub.Hub) *ChannelsHandler {
	return &ChannelsHandler{hub: h}
}

type channelInfo struct {
	UserCount int `json:"user_count,omitempty"`
}

// List handles GET /apps/:app_id/channels?info=user_count. An app with no connections has no Namespace at all, in
// which case the channel list is simply empty.
func (h *ChannelsHandler) List(c fiber.Ctx) error {
	a := appFromLocals(c)
	withUserCount := c.Query("info") == "user_count"

	channels := fiber.Map{}
	if ns := h.hub.Namespace(a.ID); ns != nil {
		for _, name := range ns.ChannelNames() {
			if channelpolicy.KindOf(name) != channelpolicy.Presence && !withUserCount {
				channels[name] = fiber.Map{}
				continue
			}
			info := channelInfo{}
			if withUserCount {
				info.UserCount = ns.MemberCount(name)
			}
			channels[name] = info
		}
	}

	return httputil.Success(c, fiber.Map{"channels": channels})
}

type channelUser struct {
	ID string `json:"id"`
}

// Users handles GET /apps/:app_id/channels/:channel/users. It is only meaningful for presence channels; other
// channel kinds simply return an empty list since they carry no user identity.
func (h *ChannelsHandler) Users(c fiber.Ctx) error {
	a := appFromLocals(c)
	channel := c.Params("channel")

	users := []channelUser{}
	if ns := h.hub.Namespace(a.ID); ns != nil && channelpolicy.KindOf(channel) == channelpolicy.Presence {
		for _, rec := range ns.PresenceSnapshot(channel) {
			users = append(users, channelUser{ID: rec.UserID})
		}
	}

	return httputil.Success(c, fiber.Map{"users": users})
}
