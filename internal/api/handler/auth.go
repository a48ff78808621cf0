package handler

import (
	"net/http"

	"civicdesk/backend/internal/api/middleware"
	"civicdesk/backend/internal/api/respond"
	"civicdesk/backend/internal/apperr"
	"civicdesk/backend/internal/auth"

	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type registerRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Address  string `json:"address"`
}

type otpRequest struct {
	Email string `json:"email" binding:"required"`
	OTP   string `json:"otp"`
}

func bindJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return apperr.Validation("missing_fields", err.Error())
	}
	return nil
}

// Login перевіряє облікові дані та повертає JWT.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	res, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// RegisterCitizen creates a citizen account.
func (h *Handler) RegisterCitizen(c *gin.Context) {
	var req registerRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	user, err := h.auth.Register(c.Request.Context(), auth.NewAccount{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Address:  req.Address,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Citizen registered successfully", "user": user})
}

func (h *Handler) SendOTP(c *gin.Context) {
	var req otpRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	if err := h.otp.Send(c.Request.Context(), req.Email); err != nil {
		h.fail(c, err)
		return
	}
	respond.Message(c, http.StatusOK, "OTP sent to email")
}

func (h *Handler) VerifyOTP(c *gin.Context) {
	var req otpRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	if err := h.otp.Verify(c.Request.Context(), req.Email, req.OTP); err != nil {
		h.fail(c, err)
		return
	}
	respond.Message(c, http.StatusOK, "Email verified")
}

// Profile returns the authenticated user.
func (h *Handler) Profile(c *gin.Context) {
	claims := middleware.CurrentUser(c)
	user, err := h.store.GetUserByID(c.Request.Context(), claims.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

type profileRequest struct {
	Address string `json:"address"`
}

// UpdateProfile changes the caller's address.
func (h *Handler) UpdateProfile(c *gin.Context) {
	var req profileRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	claims := middleware.CurrentUser(c)
	if err := h.auth.UpdateAddress(c.Request.Context(), claims.UserID, req.Address); err != nil {
		h.fail(c, err)
		return
	}
	respond.Message(c, http.StatusOK, "Profile updated")
}
