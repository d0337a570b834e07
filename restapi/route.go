/*
Package restapi serves scan progress, prometheus metrics and pprof while a long scan runs.
*/
package restapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/AustralianCyberSecurityCentre/azul-dupescan.git/detect"
	"github.com/AustralianCyberSecurityCentre/azul-dupescan.git/enumerate"
	"github.com/AustralianCyberSecurityCentre/azul-dupescan.git/restapi/restapi_handlers"
	st "github.com/AustralianCyberSecurityCentre/azul-dupescan.git/settings"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var errNotStarted = errors.New("no scan is attached to this server yet")

type StatusServer struct {
	Router   *gin.Engine
	progress atomic.Pointer[detect.Progress]
	walked   atomic.Pointer[enumerate.WalkStats]
}

// response to hitting '/' on the server
func GetRoot(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/plain")
	_, err := c.Writer.Write([]byte("Azul Dupescan"))
	if err != nil {
		st.Logger.Err(err).Msg("get root")
	}
}

// Basic middleware to log errors.
func ErrorLoggerMiddleware(c *gin.Context) {
	if c == nil {
		st.Logger.Error().Msg("gin error, couldn't provide error info as context was nil.")
		return
	}
	c.Next()

	for _, err := range c.Errors {
		if c.Request == nil || c.Request.URL == nil {
			st.Logger.Error().Err(err).Msg("gin error, limited detail was Request or Request URL was nil.")
		} else {
			st.Logger.Error().Err(err).Msgf("gin error on route %s %s with query params %v", c.Request.Method, c.Request.URL, c.Request.URL.Query())
		}
	}
}

func NewStatusServer() *StatusServer {
	gin.SetMode(gin.ReleaseMode) // don't print route list on start

	s := &StatusServer{}
	router := gin.New()
	router.Use(ErrorLoggerMiddleware)
	// live counters for the attached scan
	lpath := "/api/v1/status"
	router.GET(lpath, s.MetricHandler(lpath, s.GetStatus))

	// base response
	router.GET("/", GetRoot)

	// memory monitoring, the filter and index dominate the heap of a long scan
	pprof.Register(router, "debug/pprof")

	// prometheus metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.Router = router
	return s
}

// Attach points the status endpoint at a scan. The enumeration stats are reported alongside.
func (s *StatusServer) Attach(p *detect.Progress, walked *enumerate.WalkStats) {
	s.walked.Store(walked)
	s.progress.Store(p)
}

type statusResponse struct {
	Progress    detect.ProgressSnapshot `json:"progress"`
	Enumeration *enumerate.WalkStats    `json:"enumeration,omitempty"`
}

func (s *StatusServer) GetStatus(c *gin.Context) {
	p := s.progress.Load()
	if p == nil {
		restapi_handlers.JSONError(c, http.StatusServiceUnavailable, "scan not started", errNotStarted)
		return
	}
	restapi_handlers.JSON(c, http.StatusOK, statusResponse{Progress: p.Snapshot(), Enumeration: s.walked.Load()})
}

// Serve listens on addr until ctx is done.
func (s *StatusServer) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is done, then shuts down gracefully.
func (s *StatusServer) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s.Router, ReadHeaderTimeout: 10 * time.Second}
	st.Logger.Info().Str("addr", ln.Addr().String()).Msg("Start Dupescan RestAPI")
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	<-errCh
	st.Logger.Info().Msg("stopped dupescan restapi")
	return err
}
