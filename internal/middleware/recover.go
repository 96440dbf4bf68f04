// recover.go реализует перехватчик паник для HTTP-обработчиков.
package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"auth-core/internal/pkg/log"

	"github.com/gin-gonic/gin"
)

// Recover возвращает middleware, который перехватывает паники в обработчиках,
// логирует их и отвечает клиенту нейтральной ошибкой 500.
//
// Поведение:
//   - Паника в любом месте стека запроса приводит к логзаписи уровня Error
//     с методом, путём и стеком;
//   - В ответ клиенту уходит {"error":"internal server error"} без
//     раскрытия внутренних деталей;
//   - Если в контексте уже есть логгер (см. pkg/log), будет использован он;
//     иначе — переданный base (если не nil), либо slog.Default().
func Recover(base *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		l := log.From(c.Request.Context())
		if l == slog.Default() && base != nil {
			l = base
		}

		defer func() {
			if r := recover(); r != nil {
				l.Error("panic_recovered",
					slog.String("method", c.Request.Method),
					slog.String("path", c.FullPath()),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())),
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "internal server error",
				})
			}
		}()

		c.Next()
	}
}
