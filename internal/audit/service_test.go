package audit

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestService_AppendRequiresType(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	if err := svc.Append(context.Background(), Event{RunID: "r"}); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
	if err := NewService(nil).Append(context.Background(), Event{Type: EventTypeCampaignStarted}); err == nil {
		t.Fatalf("expected error without repository")
	}
}

func TestService_AppendsImmutableEvents(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.LogAction(context.Background(), EventTypeCampaignStarted, "u", "operator", "1.2.3.4", "run-1", "started"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event")
	}
	if evs[0].IPAddress != "1.2.3.4" {
		t.Fatalf("expected ip captured")
	}
	if evs[0].ID == "" || evs[0].CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp assigned: %+v", evs[0])
	}
	if evs[0].RunID != "run-1" {
		t.Fatalf("expected run id")
	}
}

func TestService_ListNewestFirst(t *testing.T) {
	repo := NewMemoryRepo()
	repo.Limit = 2
	svc := NewService(repo)
	ctx := context.Background()

	for _, typ := range []EventType{EventTypeContactsUploaded, EventTypeCampaignStarted, EventTypeCampaignStopped} {
		if err := svc.LogAction(ctx, typ, "u", "operator", "", "", ""); err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
	}
	evs, err := svc.List(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(evs) != 2 || evs[0].Type != EventTypeCampaignStopped || evs[1].Type != EventTypeCampaignStarted {
		t.Fatalf("unexpected events: %+v", evs)
	}
}

func TestLogRepo_LogsAndForwards(t *testing.T) {
	var buf bytes.Buffer
	mem := NewMemoryRepo()
	svc := NewService(LogRepo{Log: slog.New(slog.NewJSONHandler(&buf, nil)), Next: mem})

	if err := svc.LogOverride(context.Background(), OverrideApplied{
		OverrideID: "ov-1",
		Phone:      "+15550000001",
		ConnectTo:  "+15559990000",
		CallSid:    "CA1",
	}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	evs := mem.Events()
	if len(evs) != 1 || evs[0].CallSid != "CA1" || evs[0].Message != "transfer routed to +15559990000" {
		t.Fatalf("expected event forwarded, got %+v", evs)
	}
	if !strings.Contains(buf.String(), `"type":"transfer_override_applied"`) {
		t.Fatalf("expected audit log line, got %s", buf.String())
	}
	if _, err := svc.List(context.Background(), 1); err != nil {
		t.Fatalf("expected list through log repo, got %v", err)
	}
}
