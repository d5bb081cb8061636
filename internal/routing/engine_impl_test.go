package routing

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"
)

func TestParseAgentLines(t *testing.T) {
	lines, err := ParseAgentLines(" +1 555 999 0000 , 01335117990:3, sip:agent@pbx.example.com ,")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	want := []WeightedDestination{
		{TargetURI: "+15559990000", Weight: 1},
		{TargetURI: "+8801335117990", Weight: 3},
		{TargetURI: "sip:agent@pbx.example.com", Weight: 1},
	}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %+v", len(want), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d: expected %+v, got %+v", i, want[i], lines[i])
		}
	}

	for _, bad := range []string{"+15559990000:0", "not-a-number"} {
		if _, err := ParseAgentLines(bad); !errors.Is(err, ErrInvalidAgentLine) {
			t.Fatalf("%q: expected ErrInvalidAgentLine, got %v", bad, err)
		}
	}
	if lines, err := ParseAgentLines(""); err != nil || len(lines) != 0 {
		t.Fatalf("expected no lines, got %+v %v", lines, err)
	}
}

func TestRouter_WeightedPick(t *testing.T) {
	r := NewRouter([]WeightedDestination{{TargetURI: "sip:a", Weight: 1}, {TargetURI: "sip:b", Weight: 3}, {TargetURI: "sip:c", Weight: 0}}, rand.New(rand.NewSource(1)))

	seen := map[string]int{}
	for i := 0; i < 400; i++ {
		d, err := r.Route(context.Background(), RouteInput{Phone: "+15550000001"})
		if err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
		if d.Action != ActionConnect {
			t.Fatalf("expected connect, got %q", d.Action)
		}
		seen[d.ConnectTo]++
	}
	if seen["sip:c"] != 0 {
		t.Fatalf("zero-weight line must never be picked")
	}
	if seen["sip:b"] <= seen["sip:a"] {
		t.Fatalf("expected heavier line picked more often: %+v", seen)
	}
}

func TestRouter_NoLinesRejects(t *testing.T) {
	r := NewRouter(nil, nil)
	d, err := r.Route(context.Background(), RouteInput{Phone: "+15550000001"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if d.Action != ActionReject || d.Reason != "no_eligible_destination" {
		t.Fatalf("unexpected decision: %+v", d)
	}
	if _, ok := r.PickAgent(context.Background(), "+15550000001"); ok {
		t.Fatalf("expected no agent")
	}
	if _, err := r.Route(context.Background(), RouteInput{}); err == nil {
		t.Fatalf("expected error without phone")
	}
}

func TestRouter_OverrideWins(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	store := NewMemoryOverrideStore()
	if _, err := store.Put(Override{ConnectTo: "+15559990009", ExpiresAt: now.Add(time.Hour)}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	r := NewRouter([]WeightedDestination{{TargetURI: "sip:a", Weight: 1}}, rand.New(rand.NewSource(1)))
	r.Overrides = NewAdminOverrideEngine(store, nil)
	r.Overrides.Now = func() time.Time { return now }

	got, ok := r.PickAgent(context.Background(), "+15550000001")
	if !ok || got != "+15559990009" {
		t.Fatalf("expected override target, got %q %v", got, ok)
	}

	r.Overrides.Now = func() time.Time { return now.Add(2 * time.Hour) }
	got, ok = r.PickAgent(context.Background(), "+15550000001")
	if !ok || got != "sip:a" {
		t.Fatalf("expected weighted line after expiry, got %q %v", got, ok)
	}
}
