package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/warpdl/pairwatch/pkg/logger"
)

const metricsShutdownTimeout = 5 * time.Second

// newRegistry returns a registry carrying the Go runtime and process
// collectors.
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// metricsServer serves /metrics for a registry.
type metricsServer struct {
	srv  *http.Server
	addr net.Addr
	once sync.Once
	err  error
}

// serveMetrics listens on addr and serves reg in the background.
func serveMetrics(addr string, reg *prometheus.Registry, l logger.Logger) (*metricsServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	m := &metricsServer{
		srv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		addr: ln.Addr(),
	}
	go func() {
		if err := m.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("metrics server: %v", err)
		}
	}()
	l.Info("serving metrics on %s", m.addr)
	return m, nil
}

// Close shuts the server down. It is safe on a nil server and when called
// more than once.
func (m *metricsServer) Close() error {
	if m == nil {
		return nil
	}
	m.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		m.err = m.srv.Shutdown(ctx)
	})
	return m.err
}
