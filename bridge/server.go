package bridge

import (
	"context"
	"errors"
	"net"
	"net/http"
	"runtime"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	reuseport "github.com/kavu/go_reuseport"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/luma/goxlr/storage"
)

// Server exposes a daemon connection over plain HTTP, for scripts and tools
// that don't want to speak the websocket protocol themselves.
type Server struct {
	addr         string
	numListeners int

	daemon   Daemon
	store    storage.Store
	gatherer prometheus.Gatherer

	router *gin.Engine
	server *http.Server
	hub    *hub

	mu         sync.Mutex
	listeners  []net.Listener
	stopWaiter sync.WaitGroup

	log *zap.Logger
}

func NewServer(options Options) *Server {
	if options.Log == nil {
		options.Log = zap.NewNop()
	}

	if options.Host == "" {
		options.Host = DefaultHost
	}

	if options.NumListeners < 1 {
		options.NumListeners = runtime.NumCPU()
	}

	if options.Gatherer == nil {
		options.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		addr:         net.JoinHostPort(options.Host, strconv.Itoa(options.Port)),
		numListeners: options.NumListeners,
		daemon:       options.Daemon,
		store:        options.Status,
		gatherer:     options.Gatherer,
		hub:          newHub(),
		log:          options.Log,
	}

	s.router = setupRouter(options.DebugHTTP, options.Log.Named("http"))
	s.routes(s.router)

	s.server = &http.Server{Handler: s.router}

	return s
}

// Handler is the bridge's router, without any listeners.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start opens the listeners and begins serving. It returns once every listener
// is open.
func (s *Server) Start() (err error) {
	if s.store != nil {
		go s.hub.run(s.store.ListenToUpdates(), func(err error) {
			s.log.Debug("Failed to forward update", zap.Error(err))
		})
	}

	s.log.Info("Starting http listeners", zap.Int("count", s.numListeners), zap.String("addr", s.addr))

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := 0; i < s.numListeners; i++ {
		listener, lerr := reuseport.Listen("tcp", s.addr)
		if lerr != nil {
			err = multierr.Append(err, lerr)
			continue
		}

		s.listeners = append(s.listeners, listener)
		s.serve(listener, s.log.Named("listener").With(zap.Int("listener", i)))
	}

	if len(s.listeners) == 0 {
		return err
	}

	if err != nil {
		// Some listeners are fine, carry on with those
		s.log.Warn("Failed to open some listeners",
			zap.Int("open", len(s.listeners)),
			zap.Error(err))
	}

	return nil
}

// Addr is the address of the first listener, useful when listening on port 0.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.listeners) == 0 {
		return nil
	}

	return s.listeners[0].Addr()
}

// Shutdown stops accepting requests and waits for active ones to finish, or
// for ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Stopping HTTP server")

	s.server.SetKeepAlivesEnabled(false)

	// Streaming responses never finish by themselves
	s.hub.close()

	err := s.server.Shutdown(ctx)
	s.stopWaiter.Wait()

	return err
}

// Close immediately closes all listeners and connections.
//
// For a graceful shutdown, use Shutdown()
func (s *Server) Close() error {
	s.hub.close()

	err := s.server.Close()
	s.stopWaiter.Wait()

	return err
}

func (s *Server) serve(listener net.Listener, log *zap.Logger) {
	s.stopWaiter.Add(1)

	go func() {
		defer s.stopWaiter.Done()

		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Listener failed", zap.Error(err))
		}
	}()
}
