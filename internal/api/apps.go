package api

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"

	"github.com/pusherd/pusherd/internal/adminauth"
	"github.com/pusherd/pusherd/internal/app"
	"github.com/pusherd/pusherd/internal/httputil"
)

// AdminHandler serves the admin login and app-provisioning endpoints.
type AdminHandler struct {
	apps      app.Repository
	admins    adminauth.Repository
	jwtSecret string
	jwtIssuer string
	tokenTTL  time.Duration
	log       zerolog.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(apps app.Repository, admins adminauth.Repository, jwtSecret, jwtIssuer string, tokenTTL time.Duration, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{apps: apps, admins: admins, jwtSecret: jwtSecret, jwtIssuer: jwtIssuer, tokenTTL: tokenTTL, log: logger}
}

// loginRequest is the JSON body for POST /admin/login.
type loginRequest struct {
	Password string `json:"password"`
}

// Login handles POST /admin/login.
func (h *AdminHandler) Login(c fiber.Ctx) error {
	var body loginRequest
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeBadRequest, "invalid request body")
	}

	token, err := adminauth.Login(c.Context(), h.admins, body.Password, h.jwtSecret, h.tokenTTL, h.jwtIssuer)
	if err != nil {
		switch {
		case errors.Is(err, adminauth.ErrNotConfigured), errors.Is(err, adminauth.ErrInvalidCredentials):
			return httputil.Fail(c, fiber.StatusUnauthorized, httputil.CodeUnauthorized, "invalid credentials")
		default:
			h.log.Error().Err(err).Msg("admin login failed")
			return httputil.Fail(c, fiber.StatusInternalServerError, httputil.CodeInternal, "an internal error occurred")
		}
	}

	return httputil.Success(c, fiber.Map{"access_token": token})
}

// appResponse is the public shape of an App. Secret is included only in CreateApp's response, to the caller who just
// created the app; ListApps redacts it.
type appResponse struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Key    string `json:"key"`
	Secret string `json:"secret,omitempty"`
}

// createAppRequest is the JSON body for POST /admin/apps.
type createAppRequest struct {
	Name string `json:"name"`
}

// CreateApp handles POST /admin/apps.
func (h *AdminHandler) CreateApp(c fiber.Ctx) error {
	var body createAppRequest
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeBadRequest, "invalid request body")
	}

	name, err := app.ValidateName(body.Name)
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeBadRequest, err.Error())
	}

	a, err := h.apps.Insert(c.Context(), name)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to create app")
		return httputil.Fail(c, fiber.StatusInternalServerError, httputil.CodeInternal, "an internal error occurred")
	}

	return httputil.SuccessStatus(c, fiber.StatusCreated, appResponse{ID: a.ID, Name: a.Name, Key: a.Key, Secret: a.Secret})
}

// ListApps handles GET /admin/apps. Secrets are never included in the listing.
func (h *AdminHandler) ListApps(c fiber.Ctx) error {
	apps, err := h.apps.List(c.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list apps")
		return httputil.Fail(c, fiber.StatusInternalServerError, httputil.CodeInternal, "an internal error occurred")
	}

	out := make([]appResponse, len(apps))
	for i, a := range apps {
		out[i] = appResponse{ID: a.ID, Name: a.Name, Key: a.Key}
	}
	return httputil.Success(c, fiber.Map{"apps": out})
}

// DeleteApp handles DELETE /admin/apps/:app_id.
func (h *AdminHandler) DeleteApp(c fiber.Ctx) error {
	id, err := appIDParam(c)
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeBadRequest, "invalid app id")
	}

	if err := h.apps.Delete(c.Context(), id); err != nil {
		h.log.Error().Err(err).Int64("app_id", id).Msg("failed to delete app")
		return httputil.Fail(c, fiber.StatusInternalServerError, httputil.CodeInternal, "an internal error occurred")
	}

	return httputil.SuccessStatus(c, fiber.StatusNoContent, nil)
}
