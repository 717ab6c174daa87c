package observability

import (
	"testing"
	"time"

	"github.com/danmuck/catalogsync/internal/testutil/testlog"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("catalogctl", "GET", "/health", 200, 12*time.Millisecond)
	RecordBytes(KindUpdate, 42)
}

func TestTransmitAndSyncErrorCounters(t *testing.T) {
	testlog.Start(t)
	before := testutil.ToFloat64(entriesSent.WithLabelValues("metrics-test", "added"))
	RecordTransmit("metrics-test", KindUpdate, 3, 1)
	RecordTransmit("metrics-test", KindFull, 2, 0)
	if got := testutil.ToFloat64(entriesSent.WithLabelValues("metrics-test", "added")); got != before+5 {
		t.Fatalf("added entries: got %v want %v", got, before+5)
	}
	if got := testutil.ToFloat64(recordsSent.WithLabelValues("metrics-test", KindUpdate)); got != 1 {
		t.Fatalf("update records: got %v", got)
	}

	RecordSyncError("metrics-test", "unmapped_list")
	RecordApply("metrics-test", KindFull)
	if got := testutil.ToFloat64(syncErrors.WithLabelValues("metrics-test", "unmapped_list")); got != 1 {
		t.Fatalf("sync errors: got %v", got)
	}
	if got := testutil.ToFloat64(recordsApplied.WithLabelValues("metrics-test", KindFull)); got != 1 {
		t.Fatalf("applied records: got %v", got)
	}
}
