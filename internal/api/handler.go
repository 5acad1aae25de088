package api

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/mrkeshav-05/learning-backend/auth"
	"github.com/mrkeshav-05/learning-backend/httpx"
)

// Service is the part of auth.Manager the handlers use.
type Service interface {
	Register(ctx context.Context, in auth.RegisterInput) (auth.Identity, error)
	Login(ctx context.Context, in auth.LoginInput) (auth.LoginResult, error)
	Refresh(ctx context.Context, raw string) (auth.TokenPair, error)
	Logout(ctx context.Context, identityID string) error
	CurrentUser(ctx context.Context) (auth.Identity, error)
	ChangePassword(ctx context.Context, identityID, oldPassword, newPassword string) error
}

type Handler struct {
	service Service
	cookies CookieConfig
	logger  *slog.Logger
}

func NewHandler(service Service, cookies CookieConfig, logger *slog.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("api: handler requires a service")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, cookies: cookies, logger: logger}, nil
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type userData struct {
	User auth.PublicIdentity `json:"user"`
}

type loginData struct {
	User         auth.PublicIdentity `json:"user"`
	AccessToken  string              `json:"accessToken"`
	RefreshToken string              `json:"refreshToken"`
}

func bind(c httpx.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return &auth.ValidationError{Msg: "malformed request body", Err: err}
	}
	return nil
}

func (h *Handler) Register(c httpx.Context) error {
	var req registerRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	identity, err := h.service.Register(c.Request().Context(), auth.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		FullName: req.FullName,
		Password: req.Password,
	})
	if err != nil {
		return err
	}
	return respond(c, httpx.StatusCreated, userData{User: identity.Public()}, "User registered successfully")
}

func (h *Handler) Login(c httpx.Context) error {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	result, err := h.service.Login(c.Request().Context(), auth.LoginInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return err
	}
	h.cookies.setTokens(c.Response(), result.Tokens)
	return respond(c, httpx.StatusOK, loginData{
		User:         result.Identity.Public(),
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
	}, "User logged in successfully")
}

// RefreshToken prefers the refresh cookie over the body field.
func (h *Handler) RefreshToken(c httpx.Context) error {
	raw, err := auth.CookieTokenExtractor(auth.RefreshTokenCookie)(c.Request())
	if err != nil {
		var req refreshRequest
		if c.Request().ContentLength != 0 {
			if err := bind(c, &req); err != nil {
				return err
			}
		}
		raw = strings.TrimSpace(req.RefreshToken)
	}
	pair, err := h.service.Refresh(c.Request().Context(), raw)
	if err != nil {
		return err
	}
	h.cookies.setTokens(c.Response(), pair)
	return respond(c, httpx.StatusOK, pair, "Access token refreshed")
}

func (h *Handler) Logout(c httpx.Context) error {
	identity, err := h.service.CurrentUser(c.Request().Context())
	if err != nil {
		return err
	}
	if err := h.service.Logout(c.Request().Context(), identity.ID); err != nil {
		return err
	}
	h.cookies.clearTokens(c.Response())
	return respond(c, httpx.StatusOK, nil, "User logged out")
}

func (h *Handler) CurrentUser(c httpx.Context) error {
	identity, err := h.service.CurrentUser(c.Request().Context())
	if err != nil {
		return err
	}
	return respond(c, httpx.StatusOK, userData{User: identity.Public()}, "Current user fetched successfully")
}

func (h *Handler) ChangePassword(c httpx.Context) error {
	identity, err := h.service.CurrentUser(c.Request().Context())
	if err != nil {
		return err
	}
	var req changePasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.service.ChangePassword(c.Request().Context(), identity.ID, req.OldPassword, req.NewPassword); err != nil {
		return err
	}
	return respond(c, httpx.StatusOK, nil, "Password changed successfully")
}

func (h *Handler) Health(c httpx.Context) error {
	return c.JSON(httpx.StatusOK, map[string]string{"status": "ok"})
}
