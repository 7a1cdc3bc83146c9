package monitor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"time"

	"LaserRange/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

var (
	Registry = prometheus.NewRegistry()

	FramesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "laserrange_frames_total",
		Help: "Frames pulled from the capture source",
	})
	CandidatesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "laserrange_candidates_total",
		Help: "Frames in which a marker candidate was found",
	})
	CalibrationSamples = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "laserrange_calibration_samples",
		Help: "Focal-length samples collected so far",
	})
	FocalLength = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "laserrange_focal_length_pixels",
		Help: "Resolved focal length, 0 while calibrating",
	})
	Distance = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "laserrange_distance",
		Help: "Last defined distance reading",
	})
	WithinToleranceTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "laserrange_within_tolerance_total",
		Help: "Readings that fell inside the tolerance band",
	})
	GRPCTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "grpc_requests_total",
		Help: "Total number of gRPC requests processed",
	})

	memUsage = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "memory_usage_Megabytes",
		Help: "Memory usage in Megabytes",
	})
	cpuUsage = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cpu_usage_percent",
		Help: "CPU usage in percent",
	})
)

func init() {
	Registry.MustRegister(FramesTotal, CandidatesTotal, CalibrationSamples, FocalLength,
		Distance, WithinToleranceTotal, GRPCTotal, memUsage, cpuUsage)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

// CheckProcessInfo samples this process's RSS and CPU usage.
func CheckProcessInfo(p *process.Process) {
	if memInfo, err := p.MemoryInfo(); err == nil {
		memUsage.Set(float64(memInfo.RSS / 1024 / 1024))
	}
	if cpuPercent, err := p.CPUPercent(); err == nil {
		cpuUsage.Set(math.Round(cpuPercent*100) / 100)
	}
}

// StartMon serves /metrics on port and refreshes process stats until ctx
// is cancelled.
func StartMon(port int, ctx context.Context) {
	log := logger.Named("monitor")
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Warn("process stats unavailable", zap.Error(err))
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", zap.Error(err))
		}
	}()
	log.Info("metrics server started", zap.Int("port", port))

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
checkPcs:
	for {
		select {
		case <-ctx.Done():
			break checkPcs
		case <-ticker.C:
			if p != nil {
				CheckProcessInfo(p)
			}
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("metrics server shutdown", zap.Error(err))
	}
}
