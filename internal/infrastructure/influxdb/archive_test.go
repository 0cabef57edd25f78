package influxdb

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/homesync/node-agent/internal/diag"
	"github.com/homesync/node-agent/internal/infrastructure/config"
	"github.com/homesync/node-agent/internal/sensor"
)

type fakeWriter struct {
	mu      sync.Mutex
	points  []*write.Point
	flushes int
}

func (f *fakeWriter) WritePoint(p *write.Point) {
	f.mu.Lock()
	f.points = append(f.points, p)
	f.mu.Unlock()
}

func (f *fakeWriter) Flush() {
	f.mu.Lock()
	f.flushes++
	f.mu.Unlock()
}

var testBoot = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func newTestArchive(rec diag.Recorder) (*Archive, *fakeWriter) {
	w := &fakeWriter{}
	a := newArchive(w, Deps{DeviceID: "node1", Project: "poc", Recorder: rec}, testBoot)
	return a, w
}

func tagValue(p *write.Point, key string) string {
	for _, t := range p.TagList() {
		if t.Key == key {
			return t.Value
		}
	}
	return ""
}

func TestConnect_Disabled(t *testing.T) {
	_, err := Connect(config.InfluxDBConfig{Enabled: false}, Deps{})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	cfg := config.InfluxDBConfig{
		Enabled: true,
		URL:     "http://127.0.0.1:59999",
		Token:   "tok",
		Org:     "homesync",
		Bucket:  "poc_telemetry",
	}
	_, err := Connect(cfg, Deps{DeviceID: "node1"})
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestWriteReading_OnePointPerChannel(t *testing.T) {
	a, w := newTestArchive(nil)

	r := sensor.Reading{Voltage: 230.5, Current: 1.25, Power: 288.1, Energy: 0.5, Frequency: 50, PowerFactor: 1}
	a.WriteReading(r, 5*time.Second)

	if len(w.points) != len(sensor.Kinds()) {
		t.Fatalf("points = %d, want %d", len(w.points), len(sensor.Kinds()))
	}
	for i, kind := range sensor.Kinds() {
		p := w.points[i]
		if p.Name() != kind {
			t.Errorf("point[%d].Name() = %q, want %q", i, p.Name(), kind)
		}
		if got := tagValue(p, "device"); got != "node1" {
			t.Errorf("device tag = %q, want node1", got)
		}
		if got := tagValue(p, "project"); got != "poc" {
			t.Errorf("project tag = %q, want poc", got)
		}
		if !p.Time().Equal(testBoot.Add(5 * time.Second)) {
			t.Errorf("point time = %v, want boot+5s", p.Time())
		}
	}

	v := w.points[0].FieldList()[0]
	if v.Key != "value" || v.Value != 230.5 {
		t.Errorf("voltage field = %s=%v, want value=230.5", v.Key, v.Value)
	}
	if a.Written() != uint64(len(sensor.Kinds())) {
		t.Errorf("Written() = %d", a.Written())
	}
}

func TestWriteReading_NoProjectTag(t *testing.T) {
	w := &fakeWriter{}
	a := newArchive(w, Deps{DeviceID: "node1"}, testBoot)

	a.WriteReading(sensor.Reading{Voltage: 230}, 0)

	for _, tag := range w.points[0].TagList() {
		if tag.Key == "project" {
			t.Errorf("unexpected project tag %q", tag.Value)
		}
	}
}

func TestWriteRelay(t *testing.T) {
	a, w := newTestArchive(nil)

	a.WriteRelay(true, time.Second)
	a.WriteRelay(false, 2*time.Second)

	if len(w.points) != 2 {
		t.Fatalf("points = %d, want 2", len(w.points))
	}
	if w.points[0].Name() != RelayMeasurement {
		t.Errorf("Name() = %q, want %q", w.points[0].Name(), RelayMeasurement)
	}
	if got := w.points[0].FieldList()[0].Value; got != int64(1) {
		t.Errorf("on value = %v (%T), want 1", got, got)
	}
	if got := w.points[1].FieldList()[0].Value; got != int64(0) {
		t.Errorf("off value = %v (%T), want 0", got, got)
	}
}

func TestForwardErrors_RecordsDiagnostics(t *testing.T) {
	rec := &diag.Memory{}
	a, _ := newTestArchive(rec)

	errs := make(chan error, 2)
	errs <- errors.New("bucket not found")
	errs <- errors.New("unauthorized")
	close(errs)
	a.forwardErrors(errs)

	if got := rec.Count(diag.KindArchiveFailed); got != 2 {
		t.Fatalf("archive_failed events = %d, want 2", got)
	}
	if ev := rec.Events()[0]; ev.Detail != "bucket not found" || ev.Source != "influxdb" {
		t.Errorf("event = %+v", ev)
	}
	if a.Failed() != 2 {
		t.Errorf("Failed() = %d, want 2", a.Failed())
	}
}

func TestClose_FlushesAndStopsWrites(t *testing.T) {
	a, w := newTestArchive(nil)

	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if w.flushes != 1 {
		t.Errorf("flushes = %d, want 1", w.flushes)
	}
	if a.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}

	a.WriteReading(sensor.Reading{Voltage: 1}, 0)
	a.WriteRelay(true, 0)
	if len(w.points) != 0 || w.flushes != 1 {
		t.Errorf("writes after Close: points=%d flushes=%d", len(w.points), w.flushes)
	}

	if err := a.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestHealthCheck_NotConnected(t *testing.T) {
	a, _ := newTestArchive(nil)
	if err := a.HealthCheck(t.Context()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}
