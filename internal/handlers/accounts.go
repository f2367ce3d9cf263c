package handlers

import (
	"mime/multipart"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/memora/backend/internal/middleware"
	"github.com/memora/backend/internal/services"
	"github.com/memora/backend/pkg/utils"
)

type AccountsHandler struct {
	Accounts     *services.AccountService
	MaxFileBytes int64
}

func NewAccountsHandler(accounts *services.AccountService, maxFileBytes int64) *AccountsHandler {
	return &AccountsHandler{Accounts: accounts, MaxFileBytes: maxFileBytes}
}

// socialLoginRequest carries either an ID token or an authorization code.
type socialLoginRequest struct {
	Token    string `json:"token"`
	Code     string `json:"code"`
	Provider string `json:"provider"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type nameRequest struct {
	Name string `json:"name"`
}

func (h *AccountsHandler) Signup(c *fiber.Ctx) error {
	var req services.SignupInput
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	if _, err := h.Accounts.Signup(requestContext(c), req); err != nil {
		return respondError(c, err, "signup_failed")
	}
	return message(c, fiber.StatusCreated, "signup successful, check your email to verify your account")
}

func (h *AccountsHandler) Login(c *fiber.Ctx) error {
	var req services.LoginInput
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	session, err := h.Accounts.Login(requestContext(c), req)
	if err != nil {
		return respondError(c, err, "login_failed")
	}
	return utils.Success(c, fiber.StatusOK, session)
}

func (h *AccountsHandler) Verify(c *fiber.Ctx) error {
	token := strings.TrimSpace(c.Query("token"))
	if err := h.Accounts.Verify(requestContext(c), token); err != nil {
		return respondError(c, err, "verify_failed")
	}
	return message(c, fiber.StatusOK, "email verified, you can now log in")
}

func (h *AccountsHandler) SocialLogin(c *fiber.Ctx) error {
	var req socialLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	provider := strings.ToLower(strings.TrimSpace(req.Provider))

	var (
		session *services.Session
		err     error
	)
	if req.Code != "" {
		session, err = h.Accounts.SocialLoginWithCode(requestContext(c), provider, req.Code)
	} else {
		session, err = h.Accounts.SocialLogin(requestContext(c), provider, req.Token)
	}
	if err != nil {
		return respondError(c, err, "social_login_failed")
	}
	return utils.Success(c, fiber.StatusOK, session)
}

func (h *AccountsHandler) ForgotPassword(c *fiber.Ctx) error {
	var req emailRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.Accounts.ForgotPassword(requestContext(c), req.Email); err != nil {
		return respondError(c, err, "forgot_password_failed")
	}
	return message(c, fiber.StatusOK, "password reset link sent to your email")
}

func (h *AccountsHandler) ResetPassword(c *fiber.Ctx) error {
	var req services.ResetPasswordInput
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.Accounts.ResetPassword(requestContext(c), req); err != nil {
		return respondError(c, err, "reset_password_failed")
	}
	return message(c, fiber.StatusOK, "password reset successfully")
}

func (h *AccountsHandler) Profile(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	profile, err := h.Accounts.Profile(requestContext(c), currentUser.ID)
	if err != nil {
		return respondError(c, err, "profile_failed")
	}
	return utils.Success(c, fiber.StatusOK, profile)
}

func (h *AccountsHandler) UpdateName(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req nameRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	profile, err := h.Accounts.UpdateName(requestContext(c), currentUser.ID, req.Name)
	if err != nil {
		return respondError(c, err, "update_name_failed")
	}
	return utils.Success(c, fiber.StatusOK, profile)
}

func (h *AccountsHandler) UpdatePassword(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req services.PasswordChangeInput
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.Accounts.UpdatePassword(requestContext(c), currentUser.ID, req); err != nil {
		return respondError(c, err, "update_password_failed")
	}
	return message(c, fiber.StatusOK, "password updated successfully")
}

func (h *AccountsHandler) UpdateAvatar(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	fileHeader, err := c.FormFile("avatar")
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "no image file provided")
	}

	uploads, err := uploadsFromHeaders([]*multipart.FileHeader{fileHeader}, h.MaxFileBytes)
	if err != nil {
		return respondError(c, err, "update_avatar_failed")
	}

	profile, err := h.Accounts.UpdateAvatar(requestContext(c), currentUser.ID, uploads[0])
	if err != nil {
		return respondError(c, err, "update_avatar_failed")
	}
	return utils.Success(c, fiber.StatusOK, profile)
}

func (h *AccountsHandler) DeleteAccount(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	if err := h.Accounts.DeleteAccount(requestContext(c), currentUser.ID); err != nil {
		return respondError(c, err, "delete_account_failed")
	}
	return message(c, fiber.StatusOK, "account, memories and all data deleted")
}
