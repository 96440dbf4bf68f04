package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"auth-core/internal/config"
	"auth-core/internal/models"
	"auth-core/internal/service"
	"auth-core/internal/storage"
	"auth-core/mocks"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testSecret = "transport-secret"
	testIssuer = "auth-core"
)

func testConfig() *config.Config {
	return &config.Config{
		Env: "local",
		Auth: config.AuthConfig{
			JWTSecret:       testSecret,
			AccessTokenTTL:  30 * time.Second,
			RefreshTokenTTL: 24 * time.Hour,
			RememberMeTTL:   720 * time.Hour,
			Issuer:          testIssuer,
		},
		Timeouts: config.TimeoutConfig{Service: 5 * time.Second},
	}
}

func setupRouter(t *testing.T) (*gin.Engine, *mocks.MockStorage) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	st := mocks.NewMockStorage(ctrl)
	cfg := testConfig()
	svc := service.New(st, cfg.Auth)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(svc, cfg).Router(log), st
}

func performRequest(router *gin.Engine, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

// signToken выпускает токен с теми же claims, что и сервис,
// чтобы тестировать транспорт без доступа к внутренностям service.
func signToken(t *testing.T, uid uuid.UUID, purpose string, ttl time.Duration) string {
	t.Helper()

	now := time.Now().UTC()
	claims := struct {
		Purpose string `json:"type"`
		jwt.RegisteredClaims
	}{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    testIssuer,
			Subject:   uid.String(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func mustHash(t *testing.T, pw string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func activeUser(id uuid.UUID, email, pwHash string) *models.User {
	return &models.User{
		ID:           id,
		Email:        email,
		PasswordHash: pwHash,
		Role:         "user",
		Status:       models.StatusActive,
	}
}

func refreshCookieFrom(t *testing.T, resp *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range resp.Result().Cookies() {
		if c.Name == refreshCookie {
			return c
		}
	}
	t.Fatalf("refresh cookie not set")
	return nil
}

func TestRegister_OK(t *testing.T) {
	router, st := setupRouter(t)

	st.EXPECT().SaveUser(gomock.Any(), gomock.Any()).Return(nil)

	resp := performRequest(router, http.MethodPost, "/api/v1/auth/register",
		gin.H{"email": "user@example.com", "password": "Abcdef1!"}, nil)

	require.Equal(t, http.StatusCreated, resp.Code)

	var body tokenResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.NotEmpty(t, body.UserID)
	require.NotEmpty(t, body.AccessToken)
	require.NotEmpty(t, body.RefreshToken)
	require.Equal(t, "bearer", body.TokenType)
	require.Greater(t, body.AccessExpiresAt, time.Now().Unix())

	c := refreshCookieFrom(t, resp)
	require.True(t, c.HttpOnly)
	require.Equal(t, "/api/v1/auth", c.Path)
	require.Equal(t, int(24*time.Hour/time.Second), c.MaxAge)
}

func TestRegister_BadInput(t *testing.T) {
	router, st := setupRouter(t)

	// Невалидное тело запроса.
	resp := performRequest(router, http.MethodPost, "/api/v1/auth/register", gin.H{"email": "u@e.com"}, nil)
	require.Equal(t, http.StatusBadRequest, resp.Code)

	// Невалидный формат email.
	resp = performRequest(router, http.MethodPost, "/api/v1/auth/register",
		gin.H{"email": "not-an-email", "password": "Abcdef1!"}, nil)
	require.Equal(t, http.StatusBadRequest, resp.Code)

	// Слабый пароль.
	resp = performRequest(router, http.MethodPost, "/api/v1/auth/register",
		gin.H{"email": "u@e.com", "password": "weak"}, nil)
	require.Equal(t, http.StatusBadRequest, resp.Code)

	// Занятый email.
	st.EXPECT().SaveUser(gomock.Any(), gomock.Any()).Return(storage.ErrAlreadyExists)
	resp = performRequest(router, http.MethodPost, "/api/v1/auth/register",
		gin.H{"email": "u@e.com", "password": "Abcdef1!"}, nil)
	require.Equal(t, http.StatusConflict, resp.Code)
}

func TestLogin_OK_And_RememberCookie(t *testing.T) {
	router, st := setupRouter(t)

	pw := "Abcdef1!"
	user := activeUser(uuid.New(), "user@example.com", mustHash(t, pw))

	st.EXPECT().UserByEmail(gomock.Any(), user.Email).Return(user, nil).Times(2)

	resp := performRequest(router, http.MethodPost, "/api/v1/auth/login",
		gin.H{"email": user.Email, "password": pw}, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var body tokenResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Equal(t, user.ID.String(), body.UserID)

	// Без remember cookie живёт RefreshTokenTTL.
	c := refreshCookieFrom(t, resp)
	require.Equal(t, int(24*time.Hour/time.Second), c.MaxAge)

	// remember=true продлевает только cookie.
	resp = performRequest(router, http.MethodPost, "/api/v1/auth/login",
		gin.H{"email": user.Email, "password": pw, "remember": true}, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	c = refreshCookieFrom(t, resp)
	require.Equal(t, int(720*time.Hour/time.Second), c.MaxAge)
}

// TestLogin_UniformUnauthorizedBody — все отказы аутентификации дают один
// и тот же 401: тело ответа побайтово совпадает для несуществующего
// аккаунта, неверного пароля и отключённого пользователя.
func TestLogin_UniformUnauthorizedBody(t *testing.T) {
	router, st := setupRouter(t)

	pw := "Abcdef1!"
	var bodies []string

	// Несуществующий аккаунт.
	st.EXPECT().UserByEmail(gomock.Any(), "ghost@example.com").Return(nil, storage.ErrNotFound)
	resp := performRequest(router, http.MethodPost, "/api/v1/auth/login",
		gin.H{"email": "ghost@example.com", "password": pw}, nil)
	require.Equal(t, http.StatusUnauthorized, resp.Code)
	bodies = append(bodies, resp.Body.String())

	// Неверный пароль.
	user := activeUser(uuid.New(), "user@example.com", mustHash(t, pw))
	st.EXPECT().UserByEmail(gomock.Any(), user.Email).Return(user, nil)
	resp = performRequest(router, http.MethodPost, "/api/v1/auth/login",
		gin.H{"email": user.Email, "password": "Wrong1!x"}, nil)
	require.Equal(t, http.StatusUnauthorized, resp.Code)
	bodies = append(bodies, resp.Body.String())

	// Отключённый аккаунт.
	inactive := activeUser(uuid.New(), "off@example.com", mustHash(t, pw))
	inactive.Status = models.StatusInactive
	st.EXPECT().UserByEmail(gomock.Any(), inactive.Email).Return(inactive, nil)
	resp = performRequest(router, http.MethodPost, "/api/v1/auth/login",
		gin.H{"email": inactive.Email, "password": pw}, nil)
	require.Equal(t, http.StatusUnauthorized, resp.Code)
	bodies = append(bodies, resp.Body.String())

	for _, b := range bodies[1:] {
		require.JSONEq(t, bodies[0], b)
	}
}

func TestRefresh_OK_FromBody(t *testing.T) {
	router, st := setupRouter(t)

	user := activeUser(uuid.New(), "user@example.com", "hash")
	rt := signToken(t, user.ID, models.PurposeRefresh, time.Hour)

	st.EXPECT().IsBlacklisted(gomock.Any(), gomock.Any()).Return(false, nil)
	st.EXPECT().UserByID(gomock.Any(), user.ID).Return(user, nil)
	st.EXPECT().AddToBlacklist(gomock.Any(), gomock.Any()).Return(nil)

	resp := performRequest(router, http.MethodPost, "/api/v1/auth/refresh",
		gin.H{"refresh_token": rt}, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var body tokenResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Equal(t, user.ID.String(), body.UserID)
	require.NotEqual(t, rt, body.RefreshToken)
}

func TestRefresh_OK_FromCookie(t *testing.T) {
	router, st := setupRouter(t)

	user := activeUser(uuid.New(), "user@example.com", "hash")
	rt := signToken(t, user.ID, models.PurposeRefresh, time.Hour)

	st.EXPECT().IsBlacklisted(gomock.Any(), gomock.Any()).Return(false, nil)
	st.EXPECT().UserByID(gomock.Any(), user.ID).Return(user, nil)
	st.EXPECT().AddToBlacklist(gomock.Any(), gomock.Any()).Return(nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: refreshCookie, Value: rt})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
}

func TestRefresh_Unauthorized(t *testing.T) {
	router, st := setupRouter(t)

	// Токен не предъявлен.
	resp := performRequest(router, http.MethodPost, "/api/v1/auth/refresh", nil, nil)
	require.Equal(t, http.StatusUnauthorized, resp.Code)
	require.JSONEq(t, `{"error":"invalid credentials"}`, resp.Body.String())

	// Access-токен вместо refresh.
	at := signToken(t, uuid.New(), models.PurposeAccess, time.Hour)
	resp = performRequest(router, http.MethodPost, "/api/v1/auth/refresh",
		gin.H{"refresh_token": at}, nil)
	require.Equal(t, http.StatusUnauthorized, resp.Code)
	require.JSONEq(t, `{"error":"invalid credentials"}`, resp.Body.String())

	// Просроченный refresh.
	expired := signToken(t, uuid.New(), models.PurposeRefresh, -time.Minute)
	resp = performRequest(router, http.MethodPost, "/api/v1/auth/refresh",
		gin.H{"refresh_token": expired}, nil)
	require.Equal(t, http.StatusUnauthorized, resp.Code)

	// Повторно использованный refresh.
	user := activeUser(uuid.New(), "user@example.com", "hash")
	rt := signToken(t, user.ID, models.PurposeRefresh, time.Hour)
	st.EXPECT().IsBlacklisted(gomock.Any(), gomock.Any()).Return(true, nil)

	resp = performRequest(router, http.MethodPost, "/api/v1/auth/refresh",
		gin.H{"refresh_token": rt}, nil)
	require.Equal(t, http.StatusUnauthorized, resp.Code)
	require.JSONEq(t, `{"error":"invalid credentials"}`, resp.Body.String())
}

func TestRefresh_StorageTimeout_503(t *testing.T) {
	router, st := setupRouter(t)

	rt := signToken(t, uuid.New(), models.PurposeRefresh, time.Hour)

	st.EXPECT().IsBlacklisted(gomock.Any(), gomock.Any()).
		Return(false, context.DeadlineExceeded)

	resp := performRequest(router, http.MethodPost, "/api/v1/auth/refresh",
		gin.H{"refresh_token": rt}, nil)
	require.Equal(t, http.StatusServiceUnavailable, resp.Code)
}

func TestRefresh_StorageError_500(t *testing.T) {
	router, st := setupRouter(t)

	rt := signToken(t, uuid.New(), models.PurposeRefresh, time.Hour)

	st.EXPECT().IsBlacklisted(gomock.Any(), gomock.Any()).
		Return(false, errors.New("db down"))

	resp := performRequest(router, http.MethodPost, "/api/v1/auth/refresh",
		gin.H{"refresh_token": rt}, nil)
	require.Equal(t, http.StatusInternalServerError, resp.Code)
	require.JSONEq(t, `{"error":"internal server error"}`, resp.Body.String())
}

func TestLogout_OK_ClearsCookie(t *testing.T) {
	router, st := setupRouter(t)

	rt := signToken(t, uuid.New(), models.PurposeRefresh, time.Hour)
	st.EXPECT().AddToBlacklist(gomock.Any(), gomock.Any()).Return(nil)

	resp := performRequest(router, http.MethodPost, "/api/v1/auth/logout",
		gin.H{"refresh_token": rt}, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	c := refreshCookieFrom(t, resp)
	require.Empty(t, c.Value)
	require.Negative(t, c.MaxAge)
}

func TestLogout_MissingOrReused(t *testing.T) {
	router, st := setupRouter(t)

	resp := performRequest(router, http.MethodPost, "/api/v1/auth/logout", nil, nil)
	require.Equal(t, http.StatusUnauthorized, resp.Code)

	// Повторный logout тем же токеном.
	rt := signToken(t, uuid.New(), models.PurposeRefresh, time.Hour)
	st.EXPECT().AddToBlacklist(gomock.Any(), gomock.Any()).Return(storage.ErrAlreadyExists)

	resp = performRequest(router, http.MethodPost, "/api/v1/auth/logout",
		gin.H{"refresh_token": rt}, nil)
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestMe_OK(t *testing.T) {
	router, st := setupRouter(t)

	user := activeUser(uuid.New(), "user@example.com", "hash")
	at := signToken(t, user.ID, models.PurposeAccess, time.Hour)

	st.EXPECT().UserByID(gomock.Any(), user.ID).Return(user, nil)

	resp := performRequest(router, http.MethodGet, "/api/v1/auth/me", nil,
		map[string]string{"Authorization": "Bearer " + at})
	require.Equal(t, http.StatusOK, resp.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Equal(t, user.ID.String(), body["id"])
	require.Equal(t, user.Email, body["email"])
}

func TestMe_Unauthorized(t *testing.T) {
	router, st := setupRouter(t)

	// Без заголовка.
	resp := performRequest(router, http.MethodGet, "/api/v1/auth/me", nil, nil)
	require.Equal(t, http.StatusUnauthorized, resp.Code)

	// Refresh-токен вместо access.
	rt := signToken(t, uuid.New(), models.PurposeRefresh, time.Hour)
	resp = performRequest(router, http.MethodGet, "/api/v1/auth/me", nil,
		map[string]string{"Authorization": "Bearer " + rt})
	require.Equal(t, http.StatusUnauthorized, resp.Code)

	// Пользователь удалён.
	uid := uuid.New()
	at := signToken(t, uid, models.PurposeAccess, time.Hour)
	st.EXPECT().UserByID(gomock.Any(), uid).Return(nil, storage.ErrNotFound)

	resp = performRequest(router, http.MethodGet, "/api/v1/auth/me", nil,
		map[string]string{"Authorization": "Bearer " + at})
	require.Equal(t, http.StatusUnauthorized, resp.Code)
	require.JSONEq(t, `{"error":"invalid credentials"}`, resp.Body.String())
}
