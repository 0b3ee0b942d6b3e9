package modules

import (
	"expvar"

	"github.com/gin-gonic/gin"

	_ "github.com/oksasatya/go-account-service/internal/metrics"
)

type DebugModule struct{}

func NewDebugModule() *DebugModule { return &DebugModule{} }

// Register exposes the expvar counters, including the "accounts" map.
func (m *DebugModule) Register(rg *gin.RouterGroup) {
	rg.GET("/debug/vars", gin.WrapH(expvar.Handler()))
}
