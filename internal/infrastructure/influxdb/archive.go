package influxdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/homesync/node-agent/internal/diag"
	"github.com/homesync/node-agent/internal/infrastructure/config"
	"github.com/homesync/node-agent/internal/sensor"
)

// Default timeouts for InfluxDB operations.
const (
	defaultConnectTimeout = 10 * time.Second
	defaultPingTimeout    = 5 * time.Second

	// millisecondsPerSecond converts seconds to milliseconds for the InfluxDB API.
	millisecondsPerSecond = 1000

	defaultBatchSize     = 100
	defaultFlushInterval = 10

	// RelayMeasurement names the points written for relay changes.
	RelayMeasurement = "relay"

	source = "influxdb"
)

// pointWriter is the part of api.WriteAPI the archive uses.
type pointWriter interface {
	WritePoint(point *write.Point)
	Flush()
}

// Deps holds what the archive needs besides its configuration.
type Deps struct {
	DeviceID string
	Project  string
	Recorder diag.Recorder
}

// Archive writes readings and relay changes to InfluxDB.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Writes never block; points are batched and flushed in the background.
type Archive struct {
	client influxdb2.Client
	writer pointWriter
	tags   map[string]string

	recorder diag.Recorder

	// bootAt anchors uptime offsets to wall-clock time.
	bootAt time.Time

	mu        sync.RWMutex
	connected bool
	written   uint64
	failed    uint64
}

// Connect establishes a connection to the InfluxDB server.
//
// It performs the following setup:
//  1. Creates the client with token authentication and batching options
//  2. Verifies connectivity with a ping
//  3. Configures the non-blocking write API
//  4. Starts forwarding async write errors as diagnostics
//
// Parameters:
//   - cfg: InfluxDB configuration from config.yaml
//   - deps: device identity for tags and the diagnostics recorder
//
// Returns:
//   - *Archive: connected archive ready for writes
//   - error: ErrDisabled, or ErrConnectionFailed wrapping the cause
func Connect(cfg config.InfluxDBConfig, deps Deps) (*Archive, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = defaultFlushInterval
	}

	// #nosec G115 -- values validated above to be positive
	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(uint(batchSize)).
			SetFlushInterval(uint(flushInterval)*millisecondsPerSecond),
	)

	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectTimeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)

	a := newArchive(writeAPI, deps, time.Now())
	a.client = client
	go a.forwardErrors(writeAPI.Errors())

	return a, nil
}

func newArchive(w pointWriter, deps Deps, bootAt time.Time) *Archive {
	rec := deps.Recorder
	if rec == nil {
		rec = diag.Discard
	}
	tags := map[string]string{"device": deps.DeviceID}
	if deps.Project != "" {
		tags["project"] = deps.Project
	}
	return &Archive{
		writer:    w,
		tags:      tags,
		recorder:  rec,
		bootAt:    bootAt,
		connected: true,
	}
}

// forwardErrors reports async write failures until the error channel closes.
func (a *Archive) forwardErrors(errorsCh <-chan error) {
	for err := range errorsCh {
		a.mu.Lock()
		a.failed++
		a.mu.Unlock()

		a.recorder.Record(diag.Event{
			Kind:     diag.KindArchiveFailed,
			Severity: diag.SeverityWarning,
			Source:   source,
			Detail:   err.Error(),
			Uptime:   time.Since(a.bootAt),
		})
	}
}

// WriteReading queues one point per channel of r, timestamped at uptime at.
func (a *Archive) WriteReading(r sensor.Reading, at time.Duration) {
	if !a.IsConnected() {
		return
	}
	ts := a.bootAt.Add(at)
	for _, kind := range sensor.Kinds() {
		v, ok := r.Value(kind)
		if !ok {
			continue
		}
		a.write(write.NewPoint(kind, a.tags, map[string]interface{}{"value": v}, ts))
	}
}

// WriteRelay queues a relay state change. It has the shape of an actuator
// change listener.
func (a *Archive) WriteRelay(on bool, at time.Duration) {
	if !a.IsConnected() {
		return
	}
	v := 0
	if on {
		v = 1
	}
	a.write(write.NewPoint(RelayMeasurement, a.tags, map[string]interface{}{"value": v}, a.bootAt.Add(at)))
}

func (a *Archive) write(p *write.Point) {
	a.writer.WritePoint(p)
	a.mu.Lock()
	a.written++
	a.mu.Unlock()
}

// Written returns how many points have been queued.
func (a *Archive) Written() uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.written
}

// Failed returns how many async write errors have been reported.
func (a *Archive) Failed() uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.failed
}

// IsConnected reports whether the archive accepts writes.
func (a *Archive) IsConnected() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.connected
}

// HealthCheck pings the server.
func (a *Archive) HealthCheck(ctx context.Context) error {
	if !a.IsConnected() || a.client == nil {
		return ErrNotConnected
	}

	checkCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	healthy, err := a.client.Ping(checkCtx)
	if err != nil {
		return fmt.Errorf("influxdb health check failed: %w", err)
	}
	if !healthy {
		return fmt.Errorf("influxdb health check failed: server not healthy")
	}
	return nil
}

// Close flushes pending points and closes the client. Safe to call twice.
func (a *Archive) Close() error {
	a.mu.Lock()
	if !a.connected {
		a.mu.Unlock()
		return nil
	}
	a.connected = false
	a.mu.Unlock()

	a.writer.Flush()
	if a.client != nil {
		a.client.Close()
	}
	return nil
}
