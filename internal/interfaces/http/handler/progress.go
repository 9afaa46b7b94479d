package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"z-novel-plan-api/internal/application/progress"
	"z-novel-plan-api/internal/interfaces/http/dto"
	"z-novel-plan-api/pkg/logger"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

// ProgressHandler 进度查询与推送处理器
type ProgressHandler struct {
	tracker  *progress.Tracker
	interval time.Duration
	upgrader websocket.Upgrader
}

// NewProgressHandler 创建进度处理器；allowedOrigins 为空时允许任意来源
func NewProgressHandler(tracker *progress.Tracker, interval time.Duration, allowedOrigins []string) *ProgressHandler {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = struct{}{}
	}
	return &ProgressHandler{
		tracker:  tracker,
		interval: interval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if len(origins) == 0 {
					return true
				}
				if _, ok := origins["*"]; ok {
					return true
				}
				_, ok := origins[r.Header.Get("Origin")]
				return ok
			},
		},
	}
}

// GetProgress 获取项目进度快照
// @Summary 获取规划与生成进度
// @Tags Progress
// @Produce json
// @Param pid path string true "项目 ID"
// @Success 200 {object} dto.Response[progress.Snapshot]
// @Router /v1/projects/{pid}/progress [get]
func (h *ProgressHandler) GetProgress(c *gin.Context) {
	snap, err := h.tracker.Snapshot(c.Request.Context(), dto.BindProjectID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	dto.Success(c, snap)
}

// WatchProgress 通过 WebSocket 推送进度，仅在快照变化时发送
// @Summary 订阅进度推送
// @Tags Progress
// @Param pid path string true "项目 ID"
// @Router /v1/projects/{pid}/progress/ws [get]
func (h *ProgressHandler) WatchProgress(c *gin.Context) {
	projectID := dto.BindProjectID(c)
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 已写入错误响应
		logger.Warn(c.Request.Context(), "progress websocket upgrade failed", "error", err.Error())
		return
	}
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	go h.readLoop(conn, cancel)

	logger.Debug(ctx, "progress watcher connected")
	var last []byte
	push := func() bool {
		payload, changed, err := h.render(ctx, projectID, last)
		if err != nil {
			logger.Warn(ctx, "progress snapshot failed", "error", err.Error())
			return true
		}
		if !changed {
			return true
		}
		last = payload.key
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteMessage(websocket.TextMessage, payload.body) == nil
	}

	if !push() {
		return
	}
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	pinger := time.NewTicker(wsPingPeriod)
	defer pinger.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !push() {
				return
			}
		case <-pinger.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

type renderedSnapshot struct {
	// key 不含生成时间，用于判断内容是否变化
	key  []byte
	body []byte
}

func (h *ProgressHandler) render(ctx context.Context, projectID string, last []byte) (*renderedSnapshot, bool, error) {
	snap, err := h.tracker.Snapshot(ctx, projectID)
	if err != nil {
		return nil, false, err
	}
	generatedAt := snap.GeneratedAt
	snap.GeneratedAt = time.Time{}
	key, err := json.Marshal(snap)
	if err != nil {
		return nil, false, err
	}
	if last != nil && bytes.Equal(key, last) {
		return nil, false, nil
	}
	snap.GeneratedAt = generatedAt
	body, err := json.Marshal(gin.H{"type": "progress", "data": snap})
	if err != nil {
		return nil, false, err
	}
	return &renderedSnapshot{key: key, body: body}, true, nil
}

// readLoop 只处理控制帧；连接关闭或超时后取消推送
func (h *ProgressHandler) readLoop(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
