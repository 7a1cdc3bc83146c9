package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"sync"
	"syscall"

	adhoc "LaserRange/Adhoc"
	"LaserRange/capture"
	"LaserRange/config"
	"LaserRange/display"
	"LaserRange/engine"
	backend "LaserRange/gRPC"
	iface "LaserRange/interface"
	"LaserRange/logger"
	"LaserRange/monitor"
	"LaserRange/pipeline"
	"LaserRange/ranging"
	"LaserRange/web"

	"go.uber.org/zap"
)

// HighGUI windows must be driven from the main OS thread.
func init() {
	runtime.LockOSThread()
}

func main() {
	if err := run(); err != nil {
		logger.Log().Error("exiting", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	logger.Sync()
}

func run() error {
	configPath := flag.String("config", "config.yaml", "path to the YAML config")
	flag.Parse()

	// bootstrap logger so config warnings are visible
	if err := logger.InitProduction(); err != nil {
		return err
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.LogMode); err != nil {
		return err
	}
	log := logger.Log()

	fmt.Println(strings.Repeat("#", 64))
	fmt.Printf(" Known distance: %v   Known width: %v   Samples: %d\n", cfg.KnownDistance, cfg.KnownWidth, cfg.SampleCount)
	fmt.Printf(" Tolerance: [%v, %v]\n", cfg.Tolerance.Min, cfg.Tolerance.Max)
	fmt.Printf(" HTTP Port: %d   gRPC Port: %d   Metrics Port: %d\n", cfg.HTTPPort, cfg.RPCPort, cfg.MetricsPort)
	fmt.Println(strings.Repeat("#", 64))

	src, err := capture.Open(cfg.Capture.Device)
	if err != nil {
		return err
	}
	defer src.Close()

	detector := &engine.Detector{}
	detector.New()
	if err := detector.Configure(cfg.Detection); err != nil {
		return err
	}
	defer detector.Destroy()

	snapshot := display.NewSnapshot()
	sinks := display.Multi{snapshot}
	if cfg.Display.Window {
		sinks = append(sinks, display.NewWindow(cfg.Display.WindowName))
	}
	defer sinks.Close()

	instanceID := adhoc.NewInstanceID()
	state := ranging.NewState(cfg.Ranging())
	loop := pipeline.New(src, detector, sinks, state, instanceID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	startAuxiliary(ctx, cancel, &wg, cfg, loop, snapshot, instanceID)
	if cfg.UseRegServer {
		loop.OnCalibrated = func(c pipeline.Calibrated) {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := adhoc.ReportCalibration(ctx, instanceID, c.FocalLength, c.Samples); err != nil {
					log.Error("calibration report failed", zap.Error(err))
				}
			}()
		}
	}

	loopErr := loop.Run(ctx)
	cancel()
	wg.Wait()
	if loopErr != nil {
		if errors.Is(loopErr, iface.ErrNoFrame) {
			return fmt.Errorf("capture stopped: %w", loopErr)
		}
		return loopErr
	}
	log.Info("Safely exited")
	return nil
}

// startAuxiliary launches the read-only status surfaces. None of them can
// stop the frame loop except through the gRPC Shutdown call.
func startAuxiliary(ctx context.Context, cancel context.CancelFunc, wg *sync.WaitGroup,
	cfg config.Config, status iface.StatusProvider, frames web.FrameSource, instanceID string) {
	log := logger.Log()

	if cfg.MetricsPort > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			monitor.StartMon(cfg.MetricsPort, ctx)
		}()
	}

	if cfg.HTTPPort > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := web.Serve(ctx, cfg.HTTPPort, web.NewRouter(status, frames)); err != nil {
				log.Error("status API stopped", zap.Error(err))
			}
		}()
	}

	if cfg.RPCPort > 0 {
		server, err := backend.StartGRPCServer(cfg.RPCPort, backend.NewServer(status, cancel))
		if err != nil {
			log.Error("gRPC server not started", zap.Error(err))
		} else {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-ctx.Done()
				server.GracefulStop()
			}()
		}
	}

	if cfg.UseRegServer {
		ip, err := adhoc.GetOutboundIP()
		if err != nil {
			log.Warn("outbound IP unknown", zap.Error(err))
		}
		adhoc.RegServerCfg.SetAddress(cfg.RegServerHost, cfg.RegServerPort)
		wg.Add(1)
		go adhoc.SendAliveMessage(ctx, wg, instanceID, ip, cfg.RPCPort, status)
	} else {
		log.Info("UseRegServer is set to false, skipping registration")
	}
}
