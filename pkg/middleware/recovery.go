package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"example.com/order-pipeline/pkg/logger"
)

// Recovery перехватывает panic в обработчиках и возвращает 500,
// не роняя процесс. Стек пишется в лог уровня error.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				lg := logger.FromContext(c.Request.Context())
				lg.Error().
					Interface("panic", r).
					Str("path", c.Request.URL.Path).
					Bytes("stack", debug.Stack()).
					Msg("Паника в обработчике запроса")

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":   "internal_error",
					"message": "Внутренняя ошибка сервера",
				})
			}
		}()
		c.Next()
	}
}
