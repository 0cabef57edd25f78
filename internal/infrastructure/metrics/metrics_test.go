package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/homesync/node-agent/internal/agent"
	"github.com/homesync/node-agent/internal/diag"
)

func TestRecord_CountsByKindAndSeverity(t *testing.T) {
	m := New()

	m.Record(diag.Event{Kind: diag.KindSensorFault, Severity: diag.SeverityWarning})
	m.Record(diag.Event{Kind: diag.KindSensorFault, Severity: diag.SeverityWarning})
	m.Record(diag.Event{Kind: diag.KindLinkDown, Severity: diag.SeverityError})

	if got := testutil.ToFloat64(m.diagnostics.WithLabelValues("sensor_fault", "warning")); got != 2 {
		t.Errorf("sensor_fault/warning = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.diagnostics.WithLabelValues("link_down", "error")); got != 1 {
		t.Errorf("link_down/error = %v, want 1", got)
	}
}

func TestStatusSeries(t *testing.T) {
	m := New()
	m.SetStatusSource(func() *agent.Status {
		return &agent.Status{
			Connected:         true,
			Relay:             true,
			Uptime:            90 * time.Second,
			ReconnectAttempts: 4,
			CommandsApplied:   3,
			Published:         12,
		}
	})

	expected := `
# HELP homesync_commands_applied_total Relay commands applied.
# TYPE homesync_commands_applied_total counter
homesync_commands_applied_total 3
# HELP homesync_connected 1 when the broker session is connected.
# TYPE homesync_connected gauge
homesync_connected 1
# HELP homesync_relay_on 1 when the relay is energised.
# TYPE homesync_relay_on gauge
homesync_relay_on 1
# HELP homesync_uptime_seconds Seconds since the agent started.
# TYPE homesync_uptime_seconds gauge
homesync_uptime_seconds 90
`
	err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected),
		"homesync_commands_applied_total", "homesync_connected", "homesync_relay_on", "homesync_uptime_seconds")
	if err != nil {
		t.Error(err)
	}
}

func TestStatusSeries_NoSnapshot(t *testing.T) {
	m := New()

	n, err := testutil.GatherAndCount(m.Registry(), "homesync_connected")
	if err != nil {
		t.Fatalf("GatherAndCount() error = %v", err)
	}
	if n != 1 {
		t.Errorf("homesync_connected series = %d, want 1", n)
	}
}

type fakeArchive struct{ written, failed uint64 }

func (f *fakeArchive) Written() uint64 { return f.written }
func (f *fakeArchive) Failed() uint64  { return f.failed }

func TestRegisterArchive(t *testing.T) {
	m := New()
	a := &fakeArchive{written: 18, failed: 2}
	m.RegisterArchive(a)

	expected := `
# HELP homesync_archive_points_written_total Points handed to the InfluxDB write API.
# TYPE homesync_archive_points_written_total counter
homesync_archive_points_written_total 18
# HELP homesync_archive_write_errors_total Asynchronous InfluxDB write errors.
# TYPE homesync_archive_write_errors_total counter
homesync_archive_write_errors_total 2
`
	err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected),
		"homesync_archive_points_written_total", "homesync_archive_write_errors_total")
	if err != nil {
		t.Error(err)
	}

	// Read at scrape time.
	a.written = 24
	if n, _ := testutil.GatherAndCount(m.Registry(), "homesync_archive_points_written_total"); n != 1 {
		t.Errorf("series = %d, want 1", n)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.Record(diag.Event{Kind: diag.KindPublishFailed, Severity: diag.SeverityWarning})

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), `homesync_diagnostics_total{kind="publish_failed",severity="warning"} 1`) {
		t.Errorf("body missing diagnostics counter:\n%s", body)
	}
}
