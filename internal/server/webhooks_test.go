package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cleanflow/internal/config"
	"cleanflow/internal/db"
	"cleanflow/internal/engine"
	"cleanflow/internal/migrate"
)

func TestWebhookDispatcherDeliversAndStops(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, nil)
	ctx := context.Background()

	delivered := make(chan webhookEvent, 16)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var evt webhookEvent
		data, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(data, &evt); err != nil {
			t.Errorf("bad delivery body: %v", err)
		}
		delivered <- evt
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	if _, err := e.SignupResident(ctx, engine.SignupOptions{FullName: "R", Email: "r@test"}); err != nil {
		t.Fatal(err)
	}

	d := &webhookDispatcher{
		engine:   e,
		webhooks: []config.Webhook{{URL: ts.URL}},
		client:   ts.Client(),
		interval: 10 * time.Millisecond,
		// Cursor pinned to the log's start so the signup event above is sent.
		cursors: map[int]int64{0: 0},
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		d.run(runCtx)
		close(done)
	}()

	select {
	case evt := <-delivered:
		if evt.Type != "resident.signup" {
			t.Fatalf("delivered type = %s", evt.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop on cancel")
	}

	// New events after shutdown stay undelivered.
	if _, err := e.SignupResident(ctx, engine.SignupOptions{FullName: "S", Email: "s@test"}); err != nil {
		t.Fatal(err)
	}
	select {
	case evt := <-delivered:
		t.Fatalf("unexpected delivery after stop: %+v", evt)
	case <-time.After(100 * time.Millisecond):
	}
}
