package datadog

import (
	"net"
	"reflect"
	"strings"
	"testing"
	"time"

	"extimport/internal/metrics"
)

func TestNewBackend_RequiresAddr(t *testing.T) {
	t.Parallel()

	if _, err := NewBackend(Config{}); err == nil {
		t.Fatal("expected error for empty Addr")
	}
}

func TestLabelsToTags(t *testing.T) {
	t.Parallel()

	if got := labelsToTags(nil); got != nil {
		t.Fatalf("labelsToTags(nil) = %v, want nil", got)
	}
	got := labelsToTags(metrics.Labels{"step": "partition", "job": "cities", "status": "success"})
	want := []string{"job:cities", "status:success", "step:partition"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("labelsToTags = %v, want %v", got, want)
	}
}

// TestBackend_SendsDogStatsD points the client at a local UDP socket and
// checks the flushed payload.
func TestBackend_SendsDogStatsD(t *testing.T) {
	t.Parallel()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("udp listen: %v", err)
	}
	defer pc.Close()

	b, err := NewBackend(Config{Addr: pc.LocalAddr().String(), Namespace: "nz."})
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	b.IncCounter(metrics.RecordsTotal, 3, metrics.Labels{"job": "cities", "kind": "forwarded"})
	b.ObserveHistogram(metrics.StepDurationSeconds, 0.25, metrics.Labels{"job": "cities", "step": "partition"})
	b.ObserveHistogram("extimport_batch_rows", 500, nil)
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	var sb strings.Builder
	buf := make([]byte, 64*1024)
	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(sb.String(), "extimport_records_total") ||
		!strings.Contains(sb.String(), "extimport_step_duration_seconds") ||
		!strings.Contains(sb.String(), "extimport_batch_rows") {
		_ = pc.SetReadDeadline(deadline)
		n, _, err := pc.ReadFrom(buf)
		if err != nil {
			t.Fatalf("read: %v (got %q)", err, sb.String())
		}
		sb.Write(buf[:n])
	}

	payload := sb.String()
	if !strings.Contains(payload, "nz.extimport_records_total:3|c") {
		t.Errorf("count missing in %q", payload)
	}
	if !strings.Contains(payload, "nz.extimport_step_duration_seconds:0.25|d") {
		t.Errorf("distribution missing in %q", payload)
	}
	if !strings.Contains(payload, "nz.extimport_batch_rows:500|h") {
		t.Errorf("histogram missing in %q", payload)
	}
	if !strings.Contains(payload, "job:cities") {
		t.Errorf("tags missing in %q", payload)
	}
}

type recordingClient struct {
	calls []string
}

func (r *recordingClient) Count(name string, v int64, tags []string, _ float64) error {
	r.calls = append(r.calls, "count "+name+" "+strings.Join(tags, ","))
	return nil
}

func (r *recordingClient) Histogram(name string, _ float64, _ []string, _ float64) error {
	r.calls = append(r.calls, "histogram "+name)
	return nil
}

func (r *recordingClient) Distribution(name string, _ float64, _ []string, _ float64) error {
	r.calls = append(r.calls, "distribution "+name)
	return nil
}

func (r *recordingClient) Close() error {
	r.calls = append(r.calls, "close")
	return nil
}

func TestBackend_RoutesMetricTypes(t *testing.T) {
	t.Parallel()

	rc := &recordingClient{}
	b := &Backend{client: rc}
	b.IncCounter(metrics.BatchesTotal, 2.9, metrics.Labels{"job": "j"})
	b.ObserveHistogram(metrics.StepDurationSeconds, 1, nil)
	b.ObserveHistogram("other", 1, nil)
	if err := b.Flush(); err != nil {
		t.Fatal(err)
	}
	want := []string{
		"count extimport_batches_total job:j",
		"distribution extimport_step_duration_seconds",
		"histogram other",
		"close",
	}
	if !reflect.DeepEqual(rc.calls, want) {
		t.Fatalf("calls = %v, want %v", rc.calls, want)
	}
}

func TestZeroBackendIsSafe(t *testing.T) {
	t.Parallel()

	b := &Backend{}
	b.IncCounter(metrics.BytesTotal, 1, nil)
	b.ObserveHistogram(metrics.StepDurationSeconds, 1, nil)
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush on zero backend: %v", err)
	}
}
