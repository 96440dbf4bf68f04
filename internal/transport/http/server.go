// transport/http содержит реализацию HTTP-эндпоинтов ядра аутентификации.
// Здесь выполняется только маппинг данных и ошибок доменного слоя (service)
// в HTTP. Вся валидация и бизнес-логика находятся в пакете service.
//
// Принципы:
//   - Контекст запроса прокидывается в сервис без потерь;
//   - Ошибки сервиса явно транслируются в статусы:
//   - ErrInvalidEmail/ErrWeakPassword/ErrEmptyPassword -> 400;
//   - ErrEmailTaken -> 409;
//   - все ошибки аутентификации -> 401 с ЕДИНЫМ телом ответа: по ответу
//     нельзя отличить неверный пароль от несуществующего аккаунта,
//     повторно использованного токена или отключённого пользователя;
//   - таймаут/недоступность хранилища -> 503;
//   - иные ошибки -> 500 c единым безопасным сообщением.
//
// Безопасность:
//   - Наружу не утекают детали внутренних ошибок; подробности попадают
//     в логи через middleware на уровне сервера.
package http

import (
	"log/slog"

	"auth-core/internal/config"
	"auth-core/internal/middleware"
	"auth-core/internal/service"

	"github.com/gin-gonic/gin"
)

// Server — HTTP-сервер ядра аутентификации поверх сервисного слоя.
type Server struct {
	service *service.Service
	cfg     *config.Config
}

// NewServer создаёт HTTP-сервер аутентификации.
func NewServer(service *service.Service, cfg *config.Config) *Server {
	return &Server{
		service: service,
		cfg:     cfg,
	}
}

// Router собирает gin-движок с middleware и маршрутами сервиса.
func (s *Server) Router(log *slog.Logger) *gin.Engine {
	if s.cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(
		middleware.RequestLogger(log),
		middleware.Recover(log),
		middleware.WithTimeout(s.cfg.Timeouts.Service),
	)

	v1 := r.Group("/api/v1")
	auth := v1.Group("/auth")
	{
		auth.POST("/register", s.Register)
		auth.POST("/login", s.Login)
		auth.POST("/refresh", s.Refresh)
		auth.POST("/logout", s.Logout)
		auth.GET("/me", s.Me)
	}

	return r
}
