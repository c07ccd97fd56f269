package xsnapshot

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/omeyang/xlockable/pkg/lockable/xalloc"
	"github.com/omeyang/xlockable/pkg/lockable/xrequire"
)

func sampleState() xalloc.State {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return xalloc.State{
		Resources: []xalloc.ResourceState{
			{Name: "db-1", Labels: []string{"db"}},
			{Name: "db-2", Labels: []string{"db"}},
			{Name: "tmp", Ephemeral: true},
		},
		Grants: []xalloc.Grant{{
			ID:             "g-1",
			Owner:          "job-1",
			ContinuationID: "job-1",
			Resources:      []string{"db-1"},
			Requirements:   []xrequire.Requirement{xrequire.NamesRequirement("db-1")},
			GrantedAt:      at,
		}},
		Pending: []xalloc.PendingRequest{{
			ContinuationID: "job-2",
			Owner:          "job-2",
			Seq:            2,
			Requirements:   []xrequire.Requirement{xrequire.NamesRequirement("db-1")},
			EnqueuedAt:     at,
		}},
		NextSeq: 3,
	}
}

func newMiniredis(t *testing.T) (*miniredis.Miniredis, redis.UniversalClient) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}
