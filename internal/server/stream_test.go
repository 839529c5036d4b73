package server

import (
	"encoding/json"
	"testing"

	"cleanflow/internal/domain"
	"cleanflow/internal/engine/access"
	"cleanflow/internal/feed"
)

func change(t *testing.T, collection string, snapshot any) feed.Change {
	t.Helper()
	data, err := json.Marshal(snapshot)
	if err != nil {
		t.Fatal(err)
	}
	return feed.Change{Collection: collection, ID: "x", Snapshot: data}
}

func TestStreamFilterScopes(t *testing.T) {
	collectorID := "col-1"
	aliceItem := change(t, feed.CollectionWorkItems, domain.WorkItem{ID: "i1", OwnerID: "alice"})
	bobItem := change(t, feed.CollectionWorkItems, domain.WorkItem{ID: "i2", OwnerID: "bob"})
	assignedItem := change(t, feed.CollectionWorkItems, domain.WorkItem{ID: "i3", OwnerID: "bob", CollectorID: &collectorID})
	position := change(t, feed.CollectionCollectors, domain.Collector{ID: collectorID})

	admin := streamFilter(access.Identity{AccountID: "adm", Role: domain.RoleAdmin, Approved: true}, "")
	resident := streamFilter(access.Identity{AccountID: "alice", Role: domain.RoleResident, Approved: true}, "")
	collector := streamFilter(access.Identity{AccountID: "c", Role: domain.RoleCollector, Approved: true}, collectorID)

	cases := []struct {
		name   string
		filter func(feed.Change) bool
		c      feed.Change
		want   bool
	}{
		{"admin sees items", admin, aliceItem, true},
		{"admin sees positions", admin, position, true},
		{"resident sees own item", resident, aliceItem, true},
		{"resident blind to others", resident, bobItem, false},
		{"resident blind to positions", resident, position, false},
		{"collector sees assigned", collector, assignedItem, true},
		{"collector blind to unassigned", collector, aliceItem, false},
	}
	for _, tc := range cases {
		if got := tc.filter(tc.c); got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}
