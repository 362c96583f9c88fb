package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	app "github.com/vibely/account-service/internal/application"
	"github.com/vibely/account-service/internal/interface/middleware"
	"github.com/vibely/account-service/pkg/helpers"
	"github.com/vibely/account-service/pkg/response"
	"github.com/vibely/account-service/pkg/validation"
)

type AccountHandler struct {
	Svc     *app.Service
	Logger  *logrus.Logger
	Cookies *helpers.CookieManager
}

func NewAccountHandler(svc *app.Service, logger *logrus.Logger, cookieDomain string, cookieSecure bool) *AccountHandler {
	return &AccountHandler{Svc: svc, Logger: logger, Cookies: helpers.NewCookie(cookieDomain, cookieSecure)}
}

type registerRequest struct {
	Email         string `json:"email" binding:"required,email"`
	Username      string `json:"username" binding:"required,uname"`
	Password      string `json:"password" binding:"required,pwd"`
	Name          string `json:"name"`
	Bio           string `json:"bio"`
	DOB           string `json:"dob"`
	ProfileImgURL string `json:"profile_img_url"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type updateProfileRequest struct {
	Email         *string           `json:"email" binding:"omitempty,email"`
	Username      *string           `json:"username"`
	Name          *string           `json:"name"`
	Bio           *string           `json:"bio"`
	ProfileImgURL *string           `json:"profile_img_url"`
	BannerImgURL  *string           `json:"banner_img_url"`
	ProfileImg    *app.ImagePayload `json:"profile_img_data"`
	BannerImg     *app.ImagePayload `json:"banner_img_data"`
	Followers     *int              `json:"followers"`
	Following     *int              `json:"following"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,pwd"`
}

type updateFlagsRequest struct {
	Dating         *bool `json:"dating"`
	ContentCreator *bool `json:"content_creator"`
}

// fail maps application errors onto HTTP statuses. Anything unclassified is
// logged with detail server-side and reported as a generic 500.
func (h *AccountHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		response.Error[any](c, http.StatusBadRequest, "invalid payload", nil)
	case errors.Is(err, app.ErrDuplicateUser):
		response.Error[any](c, http.StatusBadRequest, "email or username already exists", nil)
	case errors.Is(err, app.ErrInvalidCredentials):
		response.Error[any](c, http.StatusUnauthorized, "invalid credentials", nil)
	case errors.Is(err, app.ErrUserNotFound):
		response.Error[any](c, http.StatusNotFound, "user not found", nil)
	case errors.Is(err, app.ErrUploadFailed):
		response.Error[any](c, http.StatusInternalServerError, "image upload failed", nil)
	default:
		if h.Logger != nil {
			h.Logger.WithError(err).WithField("path", c.FullPath()).Error("request failed")
		}
		response.Error[any](c, http.StatusInternalServerError, "internal server error", nil)
	}
}

func (h *AccountHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	p, pair, err := h.Svc.Register(c.Request.Context(), app.RegisterInput{
		Email:         req.Email,
		Username:      req.Username,
		Password:      req.Password,
		Name:          req.Name,
		Bio:           req.Bio,
		DOB:           req.DOB,
		ProfileImgURL: req.ProfileImgURL,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	h.Cookies.SetRefresh(c, pair.RefreshToken, pair.RefreshTokenExpiry)
	response.Success(c, http.StatusOK, gin.H{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"user":          p,
	}, "account created", map[string]any{"access_expires_at": pair.AccessTokenExpiry, "refresh_expires_at": pair.RefreshTokenExpiry})
}

func (h *AccountHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	p, pair, err := h.Svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.Cookies.SetRefresh(c, pair.RefreshToken, pair.RefreshTokenExpiry)
	response.Success(c, http.StatusOK, gin.H{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"user":          p,
	}, "login successful", map[string]any{"access_expires_at": pair.AccessTokenExpiry, "refresh_expires_at": pair.RefreshTokenExpiry})
}

func (h *AccountHandler) GetMe(c *gin.Context) {
	uid := c.GetString(middleware.CtxUserIDKey)
	p, err := h.Svc.GetProfile(c.Request.Context(), uid)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"user": p}, "profile", nil)
}

func (h *AccountHandler) GetUserByID(c *gin.Context) {
	p, err := h.Svc.GetProfile(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"user": p}, "profile", nil)
}

func (h *AccountHandler) UpdateProfile(c *gin.Context) {
	uid := c.GetString(middleware.CtxUserIDKey)
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	p, err := h.Svc.UpdateProfile(c.Request.Context(), uid, app.UpdateProfileInput{
		Email:         req.Email,
		Username:      req.Username,
		Name:          req.Name,
		Bio:           req.Bio,
		ProfileImgURL: req.ProfileImgURL,
		BannerImgURL:  req.BannerImgURL,
		ProfileImg:    req.ProfileImg,
		BannerImg:     req.BannerImg,
		Followers:     req.Followers,
		Following:     req.Following,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"user": p}, "profile updated", nil)
}

func (h *AccountHandler) ChangePassword(c *gin.Context) {
	uid := c.GetString(middleware.CtxUserIDKey)
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	if err := h.Svc.ChangePassword(c.Request.Context(), uid, req.CurrentPassword, req.NewPassword); err != nil {
		h.fail(c, err)
		return
	}
	response.Success[any](c, http.StatusOK, nil, "password updated", nil)
}

func (h *AccountHandler) UpdateFlags(c *gin.Context) {
	uid := c.GetString(middleware.CtxUserIDKey)
	var req updateFlagsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	p, err := h.Svc.UpdateFlags(c.Request.Context(), uid, app.UpdateFlagsInput{
		IsDating:         req.Dating,
		IsContentCreator: req.ContentCreator,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"user": p}, "flags updated", nil)
}

func (h *AccountHandler) SearchUsers(c *gin.Context) {
	q := c.Query("q")
	page := intQuery(c, "page", 1)
	limit := intQuery(c, "limit", 20)

	res, err := h.Svc.SearchUsers(c.Request.Context(), q, page, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, res, "users", nil)
}

func intQuery(c *gin.Context, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	return n
}
