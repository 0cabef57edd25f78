//go:build integration

package influxdb

import (
	"context"
	"testing"
	"time"

	"github.com/homesync/node-agent/internal/diag"
	"github.com/homesync/node-agent/internal/infrastructure/config"
	"github.com/homesync/node-agent/internal/sensor"
)

// Integration tests against a real InfluxDB at 127.0.0.1:8086.
//
// Run with:
//   HOMESYNC_INFLUXDB_TOKEN=... go test -tags=integration ./internal/infrastructure/influxdb/...

func TestIntegration_WriteAndFlush(t *testing.T) {
	cfg := config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "homesync-dev-token",
		Org:           "homesync",
		Bucket:        "poc_telemetry",
		BatchSize:     10,
		FlushInterval: 1,
	}
	rec := &diag.Memory{}

	a, err := Connect(cfg, Deps{DeviceID: "int-node", Project: "int", Recorder: rec})
	if err != nil {
		t.Skipf("InfluxDB not available: %v", err)
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.HealthCheck(ctx); err != nil {
		t.Fatalf("HealthCheck() error = %v", err)
	}

	a.WriteReading(sensor.Reading{Voltage: 230, Current: 1, Power: 230, Frequency: 50, PowerFactor: 1}, time.Second)
	a.WriteRelay(true, time.Second)
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Async errors arrive shortly after the flush.
	time.Sleep(500 * time.Millisecond)
	if n := rec.Count(diag.KindArchiveFailed); n != 0 {
		t.Errorf("archive_failed events = %d, want 0: %+v", n, rec.Events())
	}
}
