package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(followOps.WithLabelValues("follow", "ok"))
	FollowOp("follow", "ok")
	if got := testutil.ToFloat64(followOps.WithLabelValues("follow", "ok")); got != before+1 {
		t.Fatalf("follow counter = %v, want %v", got, before+1)
	}

	BulkAccept(2, 1)
	if got := testutil.ToFloat64(bulkAccepted.WithLabelValues("failed")); got < 1 {
		t.Fatalf("failed counter = %v", got)
	}

	ObserveRequest("GET", "/posts/{postId}", 200, 10*time.Millisecond)
	if got := testutil.ToFloat64(requestsTotal.WithLabelValues("GET", "/posts/{postId}", "200")); got < 1 {
		t.Fatalf("request counter = %v", got)
	}
}

func TestRegistryGathers(t *testing.T) {
	CacheResult(CacheHit)
	families, err := Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "sociapi_profile_cache_total" {
			found = true
		}
	}
	if !found {
		t.Fatal("profile cache counter not registered")
	}
}
