package middleware

import (
	"log/slog"
	"time"

	"auth-core/internal/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestLogger реализует логирование HTTP-запросов с контекстным логгером.
//
// Поведение и формат логов:
//   - Вытягивает X-Request-Id из заголовков, иначе генерирует UUID;
//   - Кладёт обогащённый *slog.Logger в context запроса (pkg/log),
//     чтобы он был доступен глубже по стеку;
//   - После выполнения обработчика пишет одну строку уровня Info:
//     msg="http", status=<код>, dur=<время выполнения>.
//
// Безопасность:
//   - Логи не содержат чувствительных данных (только метод/путь/peer/request_id);
//   - Если базовый логгер не передан, используется slog.Default().
func RequestLogger(base *slog.Logger) gin.HandlerFunc {
	if base == nil {
		base = slog.Default()
	}

	return func(c *gin.Context) {
		start := time.Now()

		// request_id: из заголовка, иначе генерируется новый.
		rid := c.GetHeader("X-Request-Id")
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Header("X-Request-Id", rid)

		// обогащённый логгер и прокладка в контекст запроса.
		l := base.With(
			slog.String("request_id", rid),
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.String("peer", c.ClientIP()),
		)
		c.Request = c.Request.WithContext(log.Into(c.Request.Context(), l))

		c.Next()

		// итоговая запись.
		l.Info("http",
			slog.Int("status", c.Writer.Status()),
			slog.Duration("dur", time.Since(start)),
		)
	}
}
