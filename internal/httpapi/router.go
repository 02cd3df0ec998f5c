// Package httpapi exposes the connection service over HTTP.
package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/luma/svdrp/client"
	"github.com/luma/svdrp/pool"
	"github.com/luma/svdrp/protocol"
	"github.com/luma/svdrp/service"
)

const (
	RequestIDHeader = "X-Request-ID"

	requestIDKey = "requestId"
)

type acquireRequest struct {
	ServerIP   string `json:"serverIp"`
	ServerPort uint16 `json:"serverPort"`
	Shared     bool   `json:"shared"`
}

type executeRequest struct {
	Command string `json:"command" binding:"required"`
}

type handlers struct {
	svc *service.Service
	log *zap.Logger
}

func NewRouter(svc *service.Service, debugHTTP bool, log *zap.Logger) *gin.Engine {
	gin.DisableConsoleColor()
	if !debugHTTP {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(requestID())

	// Logs all requests, like a combined access and error log, tagged with
	// the request ID.
	r.Use(ginzap.GinzapWithConfig(log, &ginzap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		SkipPaths:  []string{"/ping"},
		Context: func(c *gin.Context) []zapcore.Field {
			return []zapcore.Field{zap.String(requestIDKey, c.GetString(requestIDKey))}
		},
	}))

	// Logs all panic to error log
	//   - stack means whether output the stack info.
	r.Use(ginzap.RecoveryWithZap(log, true))

	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	h := &handlers{svc: svc, log: log.Named("http")}

	r.POST("/connections", h.acquire)
	r.DELETE("/connections/:handle", h.release)
	r.POST("/connections/:handle/commands", h.execute)

	return r
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func (h *handlers) acquire(c *gin.Context) {
	var req acquireRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.svc.Dispatch(service.AcquireConnection{
		ServerIP:   req.ServerIP,
		ServerPort: req.ServerPort,
		Shared:     req.Shared,
	})
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"handle": int(resp.(service.Acquired).Handle)})
}

func (h *handlers) release(c *gin.Context) {
	handle, ok := parseHandle(c)
	if !ok {
		return
	}

	resp, err := h.svc.Dispatch(service.ReleaseConnection{Handle: handle})
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"destroyed": resp.(service.Released).Destroyed})
}

func (h *handlers) execute(c *gin.Context) {
	handle, ok := parseHandle(c)
	if !ok {
		return
	}

	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := protocol.CheckLine(req.Command); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cmd := req.Command
	if !strings.HasSuffix(cmd, string(protocol.Terminal)) {
		cmd += string(protocol.Terminal)
	}

	status := http.StatusOK

	resp, err := h.svc.Dispatch(service.ExecuteCommand{Handle: handle, Command: cmd})
	if err != nil {
		status = statusFor(err)
		h.log.Warn("Command failed",
			zap.String(requestIDKey, c.GetString(requestIDKey)),
			zap.Int("handle", int(handle)),
			zap.Error(err))
	}

	reply := &protocol.Reply{}
	if executed, ok := resp.(service.Executed); ok && executed.Reply != nil {
		reply = executed.Reply
	}

	body, jerr := reply.JSON()
	if jerr != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": jerr.Error()})
		return
	}

	c.Data(status, "application/json; charset=utf-8", body)
}

func parseHandle(c *gin.Context) (pool.Handle, bool) {
	n, err := strconv.Atoi(c.Param("handle"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "handle must be a number"})
		return pool.None, false
	}

	return pool.Handle(n), true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, pool.ErrInvalidHandle):
		return http.StatusNotFound
	case errors.Is(err, pool.ErrPoolExhausted):
		return http.StatusServiceUnavailable
	case errors.Is(err, client.ErrConfig), errors.Is(err, protocol.ErrMultiLineCommand):
		return http.StatusBadRequest
	case errors.Is(err, client.ErrConnect), errors.Is(err, client.ErrHandshake),
		errors.Is(err, client.ErrProtocol), errors.Is(err, client.ErrIO):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
