package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveSyncRun(t *testing.T) {
	baseOK := testutil.ToFloat64(syncRuns.WithLabelValues("ok"))
	basePartial := testutil.ToFloat64(syncRuns.WithLabelValues("partial"))
	baseEntries := testutil.ToFloat64(syncEntries)

	ObserveSyncRun(3, true)
	ObserveSyncRun(0, false)

	if got := testutil.ToFloat64(syncRuns.WithLabelValues("ok")); got != baseOK+1 {
		t.Fatalf("ok runs = %v; want %v", got, baseOK+1)
	}
	if got := testutil.ToFloat64(syncRuns.WithLabelValues("partial")); got != basePartial+1 {
		t.Fatalf("partial runs = %v; want %v", got, basePartial+1)
	}
	if got := testutil.ToFloat64(syncEntries); got != baseEntries+3 {
		t.Fatalf("entries = %v; want %v", got, baseEntries+3)
	}
}
