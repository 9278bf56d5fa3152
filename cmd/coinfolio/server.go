package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/dense-analysis/coinfolio/internal/metrics"
	portfolioservice "github.com/dense-analysis/coinfolio/internal/portfolio"
	"github.com/dense-analysis/coinfolio/internal/route/auth"
	"github.com/dense-analysis/coinfolio/internal/route/coin"
	portfolioroute "github.com/dense-analysis/coinfolio/internal/route/portfolio"
	"github.com/dense-analysis/coinfolio/pkg/lax"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-ID"

type routerOptions struct {
	service        *portfolioservice.Service
	market         coin.Market
	auth           *auth.Handler
	metrics        *metrics.Metrics
	gatherer       prometheus.Gatherer
	currency       string
	allowedOrigins []string
	logger         *zap.Logger
}

// statusWriter remembers the status code written for the access log.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (writer *statusWriter) WriteHeader(status int) {
	writer.status = status
	writer.ResponseWriter.WriteHeader(status)
}

// requestLogger tags every request with an id, logs it when it completes,
// and turns panics into 500 responses.
func requestLogger(logger *zap.Logger, appMetrics *metrics.Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			start := time.Now()
			requestID := request.Header.Get(requestIDHeader)

			if requestID == "" {
				requestID = uuid.NewString()
			}

			writer.Header().Set(requestIDHeader, requestID)
			recorder := &statusWriter{ResponseWriter: writer, status: http.StatusOK}

			defer func() {
				if recovered := recover(); recovered != nil {
					logger.Error("handler panicked",
						zap.String("request_id", requestID),
						zap.String("panic", fmt.Sprint(recovered)),
					)
					http.Error(recorder, "Internal Server Error", http.StatusInternalServerError)
				}

				duration := time.Since(start)

				logger.Info("request",
					zap.String("request_id", requestID),
					zap.String("method", request.Method),
					zap.String("path", request.URL.Path),
					zap.Int("status", recorder.status),
					zap.Duration("duration", duration),
				)

				if appMetrics != nil {
					appMetrics.ObserveRequest(request.Method, recorder.status, duration)
				}
			}()

			next.ServeHTTP(recorder, request)
		})
	}
}

func handleIndex(writer http.ResponseWriter, request *http.Request) {
	http.Redirect(writer, request, "/portfolio", http.StatusFound)
}

func newRouter(options routerOptions) *mux.Router {
	router := mux.NewRouter()

	router.Use(requestLogger(options.logger, options.metrics))

	if len(options.allowedOrigins) > 0 {
		router.Use(cors.New(cors.Options{
			AllowedOrigins:   options.allowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", requestIDHeader},
			AllowCredentials: true,
		}).Handler)
	}

	router.Handle("/healthz", lax.Wrap(lax.View{
		Get: func(request *lax.Request) any {
			snapshot := options.service.Snapshot()

			return map[string]any{
				"status":   "ok",
				"loaded":   snapshot.Loaded,
				"holdings": len(snapshot.Items),
			}
		},
	}))
	router.Handle("/metrics", promhttp.HandlerFor(options.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	router.HandleFunc("/", handleIndex).Methods(http.MethodGet)
	router.HandleFunc("/login", options.auth.HandleViewLoginForm).Methods(http.MethodGet)
	router.HandleFunc("/login", options.auth.HandleLogin).Methods(http.MethodPost)
	router.HandleFunc("/logout", options.auth.HandleLogout).Methods(http.MethodPost)

	// Everything registered on protected needs an unlocked session when a
	// password is set. It is added last so the public routes match first.
	protected := router.NewRoute().Subrouter()
	protected.Use(options.auth.RequireLogin)

	portfolioHandler := portfolioroute.NewHandler(
		options.service,
		options.currency,
		options.auth.Enabled(),
		options.logger,
	)
	portfolioHandler.RegisterAPI(protected)
	portfolioHandler.RegisterPages(protected)
	coin.NewHandler(options.market, options.logger).RegisterAPI(protected)

	return router
}
