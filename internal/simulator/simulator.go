package simulator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/analog-buddy/iotdash/internal/telemetry"
)

// Simulator runs one worker per configured device.
type Simulator struct {
	cfg    *Config
	client *http.Client
	logger *zap.Logger

	sent   atomic.Int64
	failed atomic.Int64
}

// New creates a simulator.
func New(cfg *Config, logger *zap.Logger) *Simulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulator{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Target.Timeout()},
		logger: logger.Named("simulator"),
	}
}

// Run starts every device and blocks until ctx is cancelled.
func (s *Simulator) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i, devCfg := range s.cfg.Devices {
		dev := newDevice(devCfg, rand.New(rand.NewPCG(s.cfg.Seed, uint64(i))))
		interval := s.cfg.Interval()
		if devCfg.IntervalMs > 0 {
			interval = time.Duration(devCfg.IntervalMs) * time.Millisecond
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.deviceWorker(ctx, dev, interval)
		}()
	}

	s.logger.Info("simulator started",
		zap.Int("devices", len(s.cfg.Devices)),
		zap.String("target", s.cfg.Target.BaseURL))

	wg.Wait()
	s.logger.Info("simulator stopped", zap.Int64("sent", s.sent.Load()), zap.Int64("failed", s.failed.Load()))
	return ctx.Err()
}

// Stats returns the number of accepted and failed posts.
func (s *Simulator) Stats() (sent, failed int64) {
	return s.sent.Load(), s.failed.Load()
}

func (s *Simulator) deviceWorker(ctx context.Context, dev *device, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := s.post(ctx, dev.id, dev.next()); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.failed.Add(1)
			s.logger.Warn("post failed", zap.String("device", dev.id), zap.Error(err))
		} else {
			s.sent.Add(1)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// post sends one device payload. The server answers 204 like the IoT hub.
func (s *Simulator) post(ctx context.Context, deviceID string, data telemetry.IotData) error {
	body, err := json.Marshal(data)
	if err != nil {
		return err
	}

	endpoint := strings.TrimRight(s.cfg.Target.BaseURL, "/") + "/api/v1/devices/" + url.PathEscape(deviceID) + "/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	s.logger.Debug("posted", zap.String("device", deviceID), zap.ByteString("payload", body))
	return nil
}

// device is the walking state of one board. Only its worker touches it.
type device struct {
	id    string
	walks [3]ChannelWalk
	value [3]float64
	rng   *rand.Rand
}

func newDevice(cfg DeviceConfig, rng *rand.Rand) *device {
	d := &device{
		id:    cfg.ID,
		walks: [3]ChannelWalk{cfg.Temperature, cfg.Humidity, cfg.Brightness},
		rng:   rng,
	}
	for i, w := range d.walks {
		d.value[i] = clamp(w.Start, w.Min, w.Max)
	}
	return d
}

// next advances every walk and returns a reading. Channels may be dropped by
// probability, but at least one is always present.
func (d *device) next() telemetry.IotData {
	var out [3]*float64
	present := 0
	for i, w := range d.walks {
		d.value[i] = clamp(d.value[i]+(d.rng.Float64()*2-1)*w.Step, w.Min, w.Max)
		if w.DropProbability > 0 && d.rng.Float64() < w.DropProbability {
			continue
		}
		out[i] = telemetry.Float(round(d.value[i], w.Decimals))
		present++
	}
	if present == 0 {
		out[0] = telemetry.Float(round(d.value[0], d.walks[0].Decimals))
	}
	return telemetry.IotData{Temperature: out[0], Humidity: out[1], Brightness: out[2]}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
