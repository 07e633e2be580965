package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger 由 *sql.DB 实现
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthController struct {
	DB Pinger
}

func NewHealthController(db Pinger) *HealthController {
	return &HealthController{DB: db}
}

// @Summary 健康检查
// @Description 检查服务和数据库状态
// @Tags 系统
// @Produce json
// @Success 200 {object} object
// @Failure 503 {object} object
// @Router /health [get]
func (c *HealthController) HealthCheck(ctx *gin.Context) {
	database := "up"
	if c.DB == nil {
		database = "disabled"
	} else {
		pingCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
		defer cancel()
		if err := c.DB.PingContext(pingCtx); err != nil {
			ctx.JSON(http.StatusServiceUnavailable, gin.H{
				"status":     "ERROR",
				"message":    "Database unavailable",
				"components": gin.H{"database": "down"},
			})
			return
		}
	}

	ctx.JSON(http.StatusOK, gin.H{
		"status":     "OK",
		"message":    "Osian Backend is running",
		"components": gin.H{"database": database},
	})
}
