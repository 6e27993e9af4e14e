package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"video-assembly-service/ddd/application/app"
	"video-assembly-service/ddd/application/dto"
	"video-assembly-service/ddd/domain/vo"
	"video-assembly-service/pkg/logger"
	"video-assembly-service/pkg/restapi"
)

const (
	defaultStreamInterval = 500 * time.Millisecond
	streamWriteTimeout    = 5 * time.Second
)

// StatusStream 通过 WebSocket 推送任务状态，直到任务进入终态
type StatusStream struct {
	assemblyApp app.AssemblyApp
	upgrader    websocket.Upgrader
	interval    time.Duration
}

func NewStatusStream(assemblyApp app.AssemblyApp, interval time.Duration) *StatusStream {
	if interval <= 0 {
		interval = defaultStreamInterval
	}
	return &StatusStream{
		assemblyApp: assemblyApp,
		interval:    interval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Serve GET /ws/status/:job_id
func (s *StatusStream) Serve(ctx *gin.Context) {
	jobID := ctx.Param("job_id")
	// 未知任务在升级前直接返回 404
	current, err := s.assemblyApp.GetStatus(ctx.Request.Context(), jobID)
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}

	conn, err := s.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		logger.Warnf("websocket upgrade failed job_id=%s error=%v", jobID, err)
		return
	}
	defer conn.Close()

	// 读循环只用于感知客户端断开
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if !s.push(conn, current) || isTerminal(current) {
		s.finish(conn)
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case <-ticker.C:
			next, err := s.assemblyApp.GetStatus(context.WithoutCancel(ctx.Request.Context()), jobID)
			if err != nil {
				logger.Warnf("status stream read failed job_id=%s error=%v", jobID, err)
				s.finish(conn)
				return
			}
			if !changed(current, next) {
				continue
			}
			current = next
			if !s.push(conn, current) {
				return
			}
			if isTerminal(current) {
				s.finish(conn)
				return
			}
		}
	}
}

func (s *StatusStream) push(conn *websocket.Conn, job *dto.JobDto) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	if err := conn.WriteJSON(job); err != nil {
		logger.Debugf("status stream write failed job_id=%s error=%v", job.JobID, err)
		return false
	}
	return true
}

func (s *StatusStream) finish(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job finished")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(streamWriteTimeout))
}

func isTerminal(job *dto.JobDto) bool {
	return vo.JobStatus(job.Status).IsFinalStatus()
}

func changed(prev, next *dto.JobDto) bool {
	return prev.Status != next.Status ||
		prev.Progress != next.Progress ||
		prev.Message != next.Message ||
		!prev.UpdatedAt.Equal(next.UpdatedAt)
}
