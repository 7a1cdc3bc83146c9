package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	iface "LaserRange/interface"
	"LaserRange/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// PushInterval is how often /ws/status sends a snapshot.
var PushInterval = 200 * time.Millisecond

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// FrameSource hands out the latest annotated frame as JPEG bytes.
type FrameSource interface {
	Latest() []byte
}

func NewRouter(status iface.StatusProvider, frames FrameSource) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/api/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/api/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, status.Status())
	})
	r.GET("/api/frame.jpg", func(c *gin.Context) {
		data := frames.Latest()
		if data == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no frame yet"})
			return
		}
		c.Data(http.StatusOK, "image/jpeg", data)
	})
	r.GET("/ws/status", func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// upgrade already wrote the response
			return
		}
		streamStatus(c.Request.Context(), conn, status)
	})
	return r
}

func streamStatus(ctx context.Context, conn *websocket.Conn, status iface.StatusProvider) {
	defer conn.Close()
	log := logger.Named("web")

	// the reader only watches for the client going away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(PushInterval)
	defer ticker.Stop()
	for {
		if err := conn.WriteJSON(status.Status()); err != nil {
			log.Debug("status stream closed", zap.Error(err))
			return
		}
		select {
		case <-ctx.Done():
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "server shutting down"))
			return
		case <-gone:
			return
		case <-ticker.C:
		}
	}
}

// Serve runs the router on port until ctx is cancelled. Request contexts
// derive from ctx so open status streams end with it.
func Serve(ctx context.Context, port int, handler http.Handler) error {
	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", port),
		Handler:     handler,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Log().Info("HTTP server listening", zap.Int("port", port))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
