package events

import (
	"context"
	"encoding/json"
	"testing"
)

func TestNewEncodesPayload(t *testing.T) {
	e, err := New(PeriodClosed, "admin", map[string]string{"yyyymm": "202501"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if e.ID == "" || e.OccurredAt.IsZero() {
		t.Errorf("expected id and timestamp, got %+v", e)
	}
	var payload map[string]string
	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload["yyyymm"] != "202501" {
		t.Errorf("unexpected payload %v", payload)
	}
}

func TestRecorder(t *testing.T) {
	var r Recorder
	ctx := context.Background()
	for _, typ := range []string{PeriodClosed, TransferApplied} {
		e, _ := New(typ, "", nil)
		if err := r.Publish(ctx, e); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	got := r.Types()
	if len(got) != 2 || got[0] != PeriodClosed || got[1] != TransferApplied {
		t.Errorf("unexpected types %v", got)
	}
}
