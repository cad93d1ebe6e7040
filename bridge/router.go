package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"

	"github.com/luma/goxlr/client"
	"github.com/luma/goxlr/protocol"
	"github.com/luma/goxlr/storage"
)

// Daemon is the part of client.Conn the bridge needs.
type Daemon interface {
	Ping(ctx context.Context) error
	GetStatus(ctx context.Context) (json.RawMessage, error)
	Daemon(ctx context.Context, command interface{}) (*protocol.Frame, error)
	Command(ctx context.Context, serial string, command interface{}) (*protocol.Frame, error)
}

var ErrInvalidCommand = errors.New(`Expected a body like {"serial": "...", "command": ...} or {"daemon": ...}, serial defaults to the first mixer`)

func setupRouter(debugHTTP bool, log *zap.Logger) *gin.Engine {
	gin.DisableConsoleColor()
	if !debugHTTP {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(ginzap.GinzapWithConfig(log, &ginzap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		SkipPaths:  []string{"/health", "/metrics"},
	}))

	// Logs all panic to error log
	//   - stack means whether output the stack info.
	r.Use(ginzap.RecoveryWithZap(log, true))

	return r
}

func (s *Server) routes(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	r.GET("/ping", s.ping)
	r.GET("/status", s.status)
	r.GET("/status/*path", s.status)
	r.POST("/command", s.command)

	if s.store != nil {
		r.GET("/updates", s.updates)
	}
}

func (s *Server) ping(c *gin.Context) {
	if err := s.daemon.Ping(c.Request.Context()); err != nil {
		s.fail(c, err)
		return
	}

	c.String(http.StatusOK, "pong")
}

func (s *Server) status(c *gin.Context) {
	path := c.Param("path")
	if path == "/" {
		path = ""
	}

	ctx := c.Request.Context()

	if s.store != nil {
		value, err := s.store.Get(ctx, path)
		if err != nil {
			s.fail(c, err)
			return
		}

		c.Data(http.StatusOK, "application/json", value)
		return
	}

	status, err := s.daemon.GetStatus(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}

	if path == "" {
		c.Data(http.StatusOK, "application/json", status)
		return
	}

	pointer, err := storage.ParsePointer(path)
	if err != nil {
		s.fail(c, err)
		return
	}

	value := gjson.GetBytes(status, pointer.Path())
	if !value.Exists() {
		s.fail(c, storage.ErrNotFound)
		return
	}

	c.Data(http.StatusOK, "application/json", []byte(value.Raw))
}

func (s *Server) command(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		s.fail(c, err)
		return
	}

	if !gjson.ValidBytes(body) {
		s.fail(c, ErrInvalidCommand)
		return
	}

	var (
		ctx     = c.Request.Context()
		request = gjson.ParseBytes(body)
		frame   *protocol.Frame
	)

	switch serial, command, daemon := request.Get("serial"), request.Get("command"), request.Get("daemon"); {
	case serial.Exists() && command.Exists():
		frame, err = s.daemon.Command(ctx, serial.String(), json.RawMessage(command.Raw))

	case command.Exists():
		var first string
		if first, err = s.firstMixer(ctx); err == nil {
			frame, err = s.daemon.Command(ctx, first, json.RawMessage(command.Raw))
		}

	case daemon.Exists():
		frame, err = s.daemon.Daemon(ctx, json.RawMessage(daemon.Raw))

	default:
		err = ErrInvalidCommand
	}

	if err != nil {
		s.fail(c, err)
		return
	}

	c.Data(http.StatusOK, "application/json", frame.Data)
}

// firstMixer picks the default mixer, from the mirror when there is one.
func (s *Server) firstMixer(ctx context.Context) (string, error) {
	if s.store != nil {
		mixers, err := s.store.Get(ctx, "/mixers")
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return "", client.ErrNoMixers
		case err != nil:
			return "", err
		}

		status, err := sjson.SetRawBytes([]byte(`{}`), "mixers", mixers)
		if err != nil {
			return "", err
		}

		return client.SelectMixer(status, "")
	}

	status, err := s.daemon.GetStatus(ctx)
	if err != nil {
		return "", err
	}

	return client.SelectMixer(status, "")
}

// updates streams store updates to the client as server sent events until the
// client goes away or the server shuts down.
func (s *Server) updates(c *gin.Context) {
	sub := s.hub.subscribe()
	defer s.hub.unsubscribe(sub)

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false

		case update, ok := <-sub:
			if !ok {
				return false
			}

			c.SSEvent(string(update.Op), gin.H{
				"path":  update.Path,
				"value": json.RawMessage(update.Value),
			})

			return true
		}
	})
}

func (s *Server) fail(c *gin.Context, err error) {
	code := statusCode(err)
	if code >= http.StatusInternalServerError {
		s.log.Warn("Request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	}

	c.AbortWithStatusJSON(code, gin.H{"error": err.Error()})
}

func statusCode(err error) int {
	switch {
	case errors.Is(err, ErrInvalidCommand),
		errors.Is(err, storage.ErrInvalidPointer):
		return http.StatusBadRequest

	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, client.ErrNoMixers),
		errors.Is(err, client.ErrMixerNotFound):
		return http.StatusNotFound

	case errors.Is(err, client.ErrDaemon):
		return http.StatusUnprocessableEntity

	case errors.Is(err, client.ErrTimeout):
		return http.StatusGatewayTimeout

	case errors.Is(err, client.ErrConnectionClosed),
		errors.Is(err, client.ErrNotOpen):
		return http.StatusServiceUnavailable

	case errors.Is(err, client.ErrProtocol):
		return http.StatusBadGateway

	default:
		return http.StatusInternalServerError
	}
}
