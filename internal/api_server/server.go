package apiserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	api "github.com/kubev2v/meeting-intelligence/api/v1alpha1"
	"github.com/kubev2v/meeting-intelligence/internal/config"
	handlers "github.com/kubev2v/meeting-intelligence/internal/handlers/v1alpha1"
	"github.com/kubev2v/meeting-intelligence/pkg/metrics"
	"github.com/kubev2v/meeting-intelligence/pkg/middleware"
	oapimiddleware "github.com/oapi-codegen/nethttp-middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	gracefulShutdownTimeout = 5 * time.Second
	readHeaderTimeout       = 10 * time.Second
)

type Server struct {
	cfg      *config.Config
	handler  *handlers.ServiceHandler
	listener net.Listener
}

// New returns a new instance of the meeting-intelligence api server.
func New(cfg *config.Config, handler *handlers.ServiceHandler, listener net.Listener) *Server {
	return &Server{
		cfg:      cfg,
		handler:  handler,
		listener: listener,
	}
}

// oapiErrorHandler renders requests refused by the OpenAPI validator with the api error body.
func oapiErrorHandler(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(api.Error{Error: message})
}

// Router builds the middleware chain and mounts the api.
// Requests are validated against the embedded OpenAPI document before they reach a handler.
func (s *Server) Router() (http.Handler, error) {
	swagger, err := api.GetSwagger()
	if err != nil {
		return nil, fmt.Errorf("failed loading swagger spec: %w", err)
	}
	// Skip server name validation
	swagger.Servers = nil

	oapiOpts := oapimiddleware.Options{
		ErrorHandler: oapiErrorHandler,
	}

	router := chi.NewRouter()

	metricMiddleware := metrics.NewMiddleware("api_server")
	if err := metricMiddleware.Register(prometheus.DefaultRegisterer); err != nil {
		zap.S().Named("api_server").Warnw("request metrics are not exported", "error", err)
	}

	router.Use(
		metricMiddleware.Handler,
		cors.Handler(cors.Options{
			AllowedOrigins:   s.cfg.Service.AllowedOrigins,
			AllowedMethods:   []string{"GET", "PUT", "POST", "DELETE", "HEAD", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
		middleware.RequestID,
		middleware.Logger(),
		chiMiddleware.Recoverer,
		oapimiddleware.OapiRequestValidatorWithOptions(swagger, &oapiOpts),
	)

	s.handler.Routes(router)
	return router, nil
}

func (s *Server) Run(ctx context.Context) error {
	handler, err := s.Router()
	if err != nil {
		return err
	}
	// no WriteTimeout, process calls block for the whole provider round trip
	srv := &http.Server{
		Addr:              s.cfg.Service.Address,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return serve(ctx, "api_server", srv, s.listener)
}

// serve runs srv until ctx is done and then drains it for gracefulShutdownTimeout.
func serve(ctx context.Context, name string, srv *http.Server, listener net.Listener) error {
	logger := zap.S().Named(name)
	go func() {
		<-ctx.Done()
		logger.Infof("shutdown signal received: %s", ctx.Err())
		ctxTimeout, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()

		srv.SetKeepAlivesEnabled(false)
		_ = srv.Shutdown(ctxTimeout)
		logger.Info("server terminated")
	}()

	logger.Infof("listening on %s", listener.Addr().String())
	if err := srv.Serve(listener); err != nil && !errors.Is(err, net.ErrClosed) && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
