package metrics

import (
	"errors"
	"math/big"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"lendingpool/native/pool"
)

func TestObserveStatsPublishesBuckets(t *testing.T) {
	m := Pool()
	m.ObserveStats("test-stats", pool.Stats{
		Custody:   big.NewInt(1_250),
		Liquid:    big.NewInt(1_242),
		TotalFund: big.NewInt(1_242),
	})
	if got := testutil.ToFloat64(m.buckets.WithLabelValues("test-stats", "custody")); got != 1_250 {
		t.Fatalf("custody gauge: got %v", got)
	}
	if got := testutil.ToFloat64(m.buckets.WithLabelValues("test-stats", "strategized")); got != 0 {
		t.Fatalf("nil buckets must read zero, got %v", got)
	}
}

func TestObserveHealth(t *testing.T) {
	m := Pool()
	m.ObserveHealth("test-health", big.NewInt(1_035_000), pool.Percent(86), true)
	if got := testutil.ToFloat64(m.lenderAPY.WithLabelValues("test-health")); got != 0.086 {
		t.Fatalf("apy gauge: got %v", got)
	}
	if got := testutil.ToFloat64(m.functional.WithLabelValues("test-health")); got != 1 {
		t.Fatalf("functional gauge: got %v", got)
	}
	m.RecordReconcile("test-health", errors.New("drift"))
	if got := testutil.ToFloat64(m.reconcile.WithLabelValues("test-health", "mismatch")); got != 1 {
		t.Fatalf("reconcile counter: got %v", got)
	}
}
