package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"auth-core/internal/models"
	"auth-core/internal/service"

	"github.com/gin-gonic/gin"
)

// refreshCookie — имя cookie с refresh-токеном.
// Время жизни cookie и claim exp токена — независимые сроки: remember=true
// продлевает только cookie (см. config.AuthConfig.RememberMeTTL).
const refreshCookie = "refresh_token"

// invalidCredentialsBody — единое тело всех 401-ответов.
// Одно и то же для неверного пароля, неизвестного e-mail, повторно
// использованного refresh-токена и отключённого аккаунта.
var invalidCredentialsBody = gin.H{"error": "invalid credentials"}

type registerRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Remember bool   `json:"remember"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	UserID          string `json:"user_id"`
	AccessToken     string `json:"access_token"`
	RefreshToken    string `json:"refresh_token"`
	TokenType       string `json:"token_type"`
	AccessExpiresAt int64  `json:"access_expires_at"`
}

// Register регистрирует пользователя и возвращает пару токенов.
// Маппинг ошибок:
//   - ErrInvalidEmail/ErrWeakPassword/ErrEmptyPassword -> 400;
//   - ErrEmailTaken -> 409;
//   - прочее -> 500/503 (без раскрытия деталей).
func (s *Server) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	pair, uid, err := s.service.RegisterUser(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidEmail),
			errors.Is(err, service.ErrWeakPassword),
			errors.Is(err, service.ErrEmptyPassword):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email or password format"})
		case errors.Is(err, service.ErrEmailTaken):
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
		default:
			s.internalError(c, err)
		}
		return
	}

	s.setRefreshCookie(c, pair.RefreshToken, false)
	c.JSON(http.StatusCreated, tokenResponse{
		UserID:          uid.String(),
		AccessToken:     pair.AccessToken,
		RefreshToken:    pair.RefreshToken,
		TokenType:       "bearer",
		AccessExpiresAt: pair.AccessExpiresAt.Unix(),
	})
}

// Login аутентифицирует пользователя и возвращает новую пару токенов.
// Любой отказ аутентификации -> 401 с единым телом.
func (s *Server) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	pair, uid, err := s.service.LoginUser(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if isAuthFailure(err) {
			c.JSON(http.StatusUnauthorized, invalidCredentialsBody)
			return
		}

		s.internalError(c, err)
		return
	}

	s.setRefreshCookie(c, pair.RefreshToken, req.Remember)
	c.JSON(http.StatusOK, tokenResponse{
		UserID:          uid.String(),
		AccessToken:     pair.AccessToken,
		RefreshToken:    pair.RefreshToken,
		TokenType:       "bearer",
		AccessExpiresAt: pair.AccessExpiresAt.Unix(),
	})
}

// Refresh обменивает refresh-токен на новую пару (одноразово).
// Токен берётся из тела запроса, иначе из cookie.
func (s *Server) Refresh(c *gin.Context) {
	raw := s.refreshTokenFrom(c)
	if raw == "" {
		c.JSON(http.StatusUnauthorized, invalidCredentialsBody)
		return
	}

	pair, uid, err := s.service.RefreshToken(c.Request.Context(), raw)
	if err != nil {
		if isAuthFailure(err) {
			c.JSON(http.StatusUnauthorized, invalidCredentialsBody)
			return
		}

		s.internalError(c, err)
		return
	}

	s.setRefreshCookie(c, pair.RefreshToken, false)
	c.JSON(http.StatusOK, tokenResponse{
		UserID:          uid.String(),
		AccessToken:     pair.AccessToken,
		RefreshToken:    pair.RefreshToken,
		TokenType:       "bearer",
		AccessExpiresAt: pair.AccessExpiresAt.Unix(),
	})
}

// Logout отзывает предъявленный refresh-токен и гасит cookie.
func (s *Server) Logout(c *gin.Context) {
	raw := s.refreshTokenFrom(c)
	if raw == "" {
		c.JSON(http.StatusUnauthorized, invalidCredentialsBody)
		return
	}

	if err := s.service.RevokeToken(c.Request.Context(), raw, models.ReasonUsed); err != nil {
		if isAuthFailure(err) {
			c.JSON(http.StatusUnauthorized, invalidCredentialsBody)
			return
		}

		s.internalError(c, err)
		return
	}

	c.SetCookie(refreshCookie, "", -1, "/api/v1/auth", "", false, true)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Me валидирует access-токен из заголовка Authorization и возвращает
// данные пользователя.
func (s *Server) Me(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, invalidCredentialsBody)
		return
	}

	user, err := s.service.ValidateToken(c.Request.Context(), token)
	if err != nil {
		if isAuthFailure(err) {
			c.JSON(http.StatusUnauthorized, invalidCredentialsBody)
			return
		}

		s.internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":     user.ID.String(),
		"email":  user.Email,
		"role":   user.Role,
		"status": user.Status,
	})
}

// isAuthFailure группирует все ожидаемые отказы аутентификации,
// которые наружу схлопываются в единый 401.
func isAuthFailure(err error) bool {
	return errors.Is(err, service.ErrInvalidCredentials) ||
		errors.Is(err, service.ErrInvalidToken) ||
		errors.Is(err, service.ErrTokenExpired) ||
		errors.Is(err, service.ErrTokenReused) ||
		errors.Is(err, service.ErrInactiveAccount) ||
		errors.Is(err, service.ErrUserNotFound)
}

// internalError отвечает 503 на таймаут/отмену (хранилище недоступно,
// исход операции неизвестен — клиенту можно повторить) и 500 на остальное.
func (s *Server) internalError(c *gin.Context, err error) {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily unavailable"})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

// setRefreshCookie выставляет HttpOnly-cookie с refresh-токеном.
// remember продлевает только срок cookie, не claim exp самого токена.
func (s *Server) setRefreshCookie(c *gin.Context, token string, remember bool) {
	ttl := s.cfg.Auth.RefreshTokenTTL
	if remember {
		ttl = s.cfg.Auth.RememberMeTTL
	}

	secure := s.cfg.Env == "prod"
	c.SetCookie(refreshCookie, token, int(ttl/time.Second), "/api/v1/auth", "", secure, true)
}

// refreshTokenFrom достаёт refresh-токен из тела запроса или cookie.
func (s *Server) refreshTokenFrom(c *gin.Context) string {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err == nil && req.RefreshToken != "" {
		return req.RefreshToken
	}

	if v, err := c.Cookie(refreshCookie); err == nil {
		return v
	}

	return ""
}

// bearerToken извлекает access-токен из заголовка Authorization.
func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}

	return strings.TrimSpace(h[len(prefix):])
}
