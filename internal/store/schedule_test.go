package store

import (
	"context"
	"testing"
	"time"
)

var base = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

func at(h int) *time.Time {
	t := base.Add(time.Duration(h) * time.Hour)
	return &t
}

func TestScheduleRecompute_InsertAndUpdate(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.ScheduleRecompute(ctx, "user-1", "ldap", "h1", at(5), "run-1"); err != nil {
		t.Fatalf("ScheduleRecompute() failed: %v", err)
	}
	if err := s.ScheduleRecompute(ctx, "user-1", "ldap", "h2", at(2), "run-2"); err != nil {
		t.Fatalf("ScheduleRecompute() update failed: %v", err)
	}

	entries, err := s.Schedule(ctx, "user-1")
	if err != nil {
		t.Fatalf("Schedule() failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if !e.NextRecompute.Equal(*at(2)) || e.ConstructionHash != "h2" || e.RunID != "run-2" {
		t.Errorf("entry not updated: %+v", e)
	}
}

func TestScheduleRecompute_NilClears(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.ScheduleRecompute(ctx, "user-1", "ldap", "h1", at(5), "run-1"); err != nil {
		t.Fatal(err)
	}
	if err := s.ScheduleRecompute(ctx, "user-1", "ldap", "h1", nil, "run-2"); err != nil {
		t.Fatalf("clear failed: %v", err)
	}

	entries, err := s.Schedule(ctx, "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("got %d entries after clear, want 0", len(entries))
	}

	// Clearing an absent entry is not an error
	if err := s.ScheduleRecompute(ctx, "user-2", "ldap", "h1", nil, "run-3"); err != nil {
		t.Errorf("clearing absent entry: %v", err)
	}
}

func TestDueRecomputes_OrderAndCutoff(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	seed := []struct {
		focus, construction string
		next                *time.Time
	}{
		{"user-2", "ldap", at(3)},
		{"user-1", "ldap", at(1)},
		{"user-1", "ad", at(3)},
		{"user-3", "ldap", at(10)},
	}
	for _, e := range seed {
		if err := s.ScheduleRecompute(ctx, e.focus, e.construction, "h", e.next, "run"); err != nil {
			t.Fatal(err)
		}
	}

	due, err := s.DueRecomputes(ctx, *at(3), 0)
	if err != nil {
		t.Fatalf("DueRecomputes() failed: %v", err)
	}

	want := [][2]string{{"user-1", "ldap"}, {"user-1", "ad"}, {"user-2", "ldap"}}
	if len(due) != len(want) {
		t.Fatalf("got %d due entries, want %d", len(due), len(want))
	}
	for i, w := range want {
		if due[i].FocusOID != w[0] || due[i].ConstructionID != w[1] {
			t.Errorf("due[%d] = %s/%s, want %s/%s", i, due[i].FocusOID, due[i].ConstructionID, w[0], w[1])
		}
	}

	limited, err := s.DueRecomputes(ctx, *at(3), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 || limited[0].FocusOID != "user-1" {
		t.Errorf("limit not applied: %+v", limited)
	}
}

func TestDueRecomputes_EmptyNotNil(t *testing.T) {
	s := createTestStore(t)

	due, err := s.DueRecomputes(context.Background(), base, 0)
	if err != nil {
		t.Fatal(err)
	}
	if due == nil {
		t.Error("DueRecomputes() returned nil, want empty slice")
	}
}

func TestDueRecomputes_TimezoneIndependent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	tokyo := time.FixedZone("JST", 9*3600)
	local := at(2).In(tokyo)
	if err := s.ScheduleRecompute(ctx, "user-1", "ldap", "h", &local, "run"); err != nil {
		t.Fatal(err)
	}

	due, err := s.DueRecomputes(ctx, *at(2), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 1 {
		t.Fatalf("got %d due, want 1", len(due))
	}
	if due[0].NextRecompute.Location() != time.UTC {
		t.Errorf("NextRecompute location = %v, want UTC", due[0].NextRecompute.Location())
	}
}
