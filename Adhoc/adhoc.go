package Adhoc

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	iface "LaserRange/interface"
	"LaserRange/logger"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const TimeOutSeconds = 5

// Interval between heartbeats.
var Interval = TimeOutSeconds * time.Second

type RegisterRequest struct {
	Id              string  `json:"id"`
	IP              string  `json:"ip"`
	Port            int     `json:"port"`
	Phase           string  `json:"phase"`
	Samples         int     `json:"samples"`
	HasReading      bool    `json:"hasReading"`
	Distance        float64 `json:"distance"`
	WithinTolerance bool    `json:"withinTolerance"`
	TimeStamp       int64   `json:"timestamp"`
}

type RegisterResponse struct {
	Id      string `json:"id"`
	Success bool   `json:"success"`
}

type CalibrationReport struct {
	Id          string    `json:"id"`
	FocalLength float64   `json:"focalLength"`
	Samples     []float64 `json:"samples"`
	TimeStamp   int64     `json:"timestamp"`
}

type RegServerConfig struct {
	Port int
	Addr string
}

func (reg *RegServerConfig) SetAddress(addr string, port int) {
	reg.Addr = addr
	reg.Port = port
}

func (reg *RegServerConfig) url(path string) string {
	return fmt.Sprintf("http://%s:%d%s", reg.Addr, reg.Port, path)
}

var RegServerCfg RegServerConfig

func NewInstanceID() string {
	return uuid.NewString()
}

// GetOutboundIP returns the local address used for the default route.
// No packet is sent.
func GetOutboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}

func newClient() *resty.Client {
	return resty.New().
		SetTimeout(TimeOutSeconds*time.Second).
		SetHeader("Content-Type", "application/json")
}

func post(ctx context.Context, client *resty.Client, url string, body, result interface{}) error {
	req := client.R().SetContext(ctx).SetBody(body)
	if result != nil {
		req.SetResult(result)
	}
	resp, err := req.Post(url)
	if err != nil {
		return fmt.Errorf("post %s: %w", url, err)
	}
	if resp.IsError() {
		return fmt.Errorf("post %s: server returned %s: %s", url, resp.Status(), resp.String())
	}
	return nil
}

// SendAliveMessage posts the current status to the registration server
// every Interval until ctx is cancelled.
func SendAliveMessage(ctx context.Context, wg *sync.WaitGroup, id, ip string, port int, provider iface.StatusProvider) {
	defer wg.Done()
	log := logger.Named("adhoc")
	client := newClient()
	ticker := time.NewTicker(Interval)
	defer ticker.Stop()

	safeDoRequest := func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error(fmt.Sprintf("SendAliveMessage panic recovered: %v", r))
			}
		}()
		st := provider.Status()
		reqBody := RegisterRequest{
			Id:              id,
			IP:              ip,
			Port:            port,
			Phase:           st.Phase,
			Samples:         st.Samples,
			HasReading:      st.HasReading,
			Distance:        st.Distance,
			WithinTolerance: st.WithinTolerance,
			TimeStamp:       time.Now().Unix(),
		}
		var respBody RegisterResponse
		if err := post(ctx, client, RegServerCfg.url("/api/register"), reqBody, &respBody); err != nil {
			log.Error("heartbeat failed", zap.Error(err))
			return
		}
		if !respBody.Success {
			log.Warn("registration rejected", zap.String("id", respBody.Id))
		}
	}
	safeDoRequest()
	for {
		select {
		case <-ctx.Done():
			log.Info("SendAliveMessage context cancelled, exiting goroutine.")
			return
		case <-ticker.C:
			safeDoRequest()
		}
	}
}

// ReportCalibration sends the one-time calibration result.
func ReportCalibration(ctx context.Context, id string, focalLength float64, samples []float64) error {
	report := CalibrationReport{
		Id:          id,
		FocalLength: focalLength,
		Samples:     samples,
		TimeStamp:   time.Now().Unix(),
	}
	if err := post(ctx, newClient(), RegServerCfg.url("/api/calibration"), report, nil); err != nil {
		return err
	}
	logger.Named("adhoc").Info("calibration reported", zap.String("id", id), zap.Float64("focalLength", focalLength))
	return nil
}
