package finam

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// PrometheusService отдаёт метрики опроса площадки на /metrics
type PrometheusService struct {
	server *http.Server
}

func (s *PrometheusService) handler() http.Handler {
	mux := http.NewServeMux()
	metrics := promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		ErrorLog:            zap.NewStdLog(l),
		Registry:            registry,
		MaxRequestsInFlight: 5,
		Timeout:             30 * time.Second,
	})
	mux.Handle("/metrics", promhttp.InstrumentMetricHandler(registry, metrics))
	return mux
}

func (s *PrometheusService) Start(addr string) error {
	s.server = &http.Server{Addr: addr, Handler: s.handler(), ReadHeaderTimeout: 5 * time.Second}

	go func() {
		l.Info("отдаю метрики коннектора", zap.String("address", addr))
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Error("сервис метрик остановился", zap.String("address", addr), zap.Error(err))
		}
	}()
	return nil
}

func (s *PrometheusService) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
