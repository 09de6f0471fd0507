package controlplane

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/betbot/iqbot/internal/services"
)

var log = logrus.WithField("component", "controlplane")

// Server 本地控制面：通过 HTTP 查看和操作账户状态
// 只监听本机地址，不做鉴权
type Server struct {
	accounts *services.AccountService
	srv      *http.Server
}

// New 创建控制面服务
func New(accounts *services.AccountService, listenAddr string) *Server {
	s := &Server{accounts: accounts}
	s.srv = &http.Server{
		Addr:    listenAddr,
		Handler: s.router(),
	}
	return s
}

func (s *Server) router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	api := r.Group("/api")
	account := api.Group("/account")
	account.GET("", s.handleAccountGet)
	account.GET("/tournaments", s.handleTournaments)
	account.POST("/switch", s.handleSwitch)
	account.POST("/refill", s.handleRefill)

	return r
}

// StartAsync 在后台启动 HTTP 服务
func (s *Server) StartAsync() {
	go func() {
		log.Infof("控制面监听 %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("控制面服务异常退出: %v", err)
		}
	}()
}

// Shutdown 优雅关闭
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// handleAccountGet 返回当前活跃账户
func (s *Server) handleAccountGet(c *gin.Context) {
	record, ok := s.accounts.CurrentAccount()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "没有活跃账户"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":       record.ID,
		"type":     record.Type.String(),
		"balance":  record.Amount,
		"currency": record.Currency,
	})
}

// handleTournaments 返回当前可参加的锦标赛账户
func (s *Server) handleTournaments(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tournaments": s.accounts.TournamentAccounts()})
}

type switchRequest struct {
	Type string `json:"type" binding:"required"`
}

// handleSwitch 切换活跃账户类型
func (s *Server) handleSwitch(c *gin.Context) {
	var req switchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求体必须包含 type 字段"})
		return
	}

	start := time.Now()
	if err := s.accounts.Switch(req.Type); err != nil {
		s.writeServiceError(c, err)
		return
	}

	id, _ := s.accounts.CurrentID()
	c.JSON(http.StatusOK, gin.H{
		"ok":         true,
		"account_id": id,
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
}

type refillRequest struct {
	Amount int64 `json:"amount"`
}

// handleRefill 重置模拟账户余额
func (s *Server) handleRefill(c *gin.Context) {
	var req refillRequest
	// 空请求体使用默认金额
	_ = c.ShouldBindJSON(&req)

	if err := s.accounts.RefillDemoBalance(req.Amount); err != nil {
		s.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// writeServiceError 把服务层错误映射为 HTTP 状态码
func (s *Server) writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidAccountType):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrAccountNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrNotDemoAccount):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrNoData):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
