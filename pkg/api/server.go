// Package api is the device's inbound responder.
//
// Every request is answered with a short plain text acknowledgement naming
// the requested path, and the connection is closed afterwards. Prometheus
// metrics are served on /metrics.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	fx "github.com/robotalks/tagrelay/pkg/framework"
	"github.com/robotalks/tagrelay/pkg/logging"
)

// DefaultAddr is the responder listen address.
const DefaultAddr = ":6668"

// Server answers inbound requests.
type Server struct {
	Addr     string
	Gatherer prometheus.Gatherer
	Logger   logging.Logger

	router *gin.Engine
}

// NewServer creates a Server. A nil gatherer disables /metrics.
func NewServer(addr string, gatherer prometheus.Gatherer) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	s := &Server{Addr: addr, Gatherer: gatherer}
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLogger)
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	r.NoRoute(acknowledge)
	r.NoMethod(acknowledge)
	s.router = r
	return s
}

// Name implements framework.Named.
func (s *Server) Name() string {
	return "api"
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run implements framework.Runnable.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	logging.OrGlog(s.Logger).Infof("responder listening on %s", ln.Addr())
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	err := fx.RunWithContextCancel(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}, func() error {
		return srv.Serve(ln)
	})
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func acknowledge(c *gin.Context) {
	c.Header("Connection", "close")
	c.String(http.StatusOK, fmt.Sprintf("You accessed %q!", c.Request.URL.Path))
}

// requestLogger reports each request through Logger, so requests are shipped
// along with the rest of the device log.
func (s *Server) requestLogger(c *gin.Context) {
	logger := logging.OrGlog(s.Logger)
	start := time.Now()
	logger.Infof("Accepted connection from %s", c.Request.RemoteAddr)
	c.Next()
	logger.Infof("%s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
}
