package processor

import (
	"reflect"
	"testing"
	"time"

	"entsoeflow/models"
)

func fp(v float64) *float64 { return &v }

func dupItems() []models.SeriesItem {
	t0 := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)
	return []models.SeriesItem{
		{Timestamp: t1, Price: fp(30)},
		{Timestamp: t0, Price: fp(10)},
		{Timestamp: t0, Price: fp(20)},
		{Timestamp: t0, Price: nil},
	}
}

func TestParsePolicy(t *testing.T) {
	for in, want := range map[string]Policy{"": PolicyLast, "LAST": PolicyLast, " first ": PolicyFirst, "Mean": PolicyMean} {
		got, err := ParsePolicy(in)
		if err != nil || got != want {
			t.Fatalf("ParsePolicy(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParsePolicy("median"); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
}

func TestCoalescePolicies(t *testing.T) {
	last := Coalesce(dupItems(), PolicyLast)
	if len(last) != 2 {
		t.Fatalf("expected 2 instants, got %d", len(last))
	}
	if last[0].Price != nil {
		t.Fatalf("last policy should keep the final (null) value, got %v", *last[0].Price)
	}
	if *last[1].Price != 30 {
		t.Fatalf("expected sorted output")
	}

	first := Coalesce(dupItems(), PolicyFirst)
	if *first[0].Price != 10 {
		t.Fatalf("first policy = %v", *first[0].Price)
	}

	mean := Coalesce(dupItems(), PolicyMean)
	if *mean[0].Price != 15 {
		t.Fatalf("mean policy should ignore nulls, got %v", *mean[0].Price)
	}
}

func TestCoalesceEmpty(t *testing.T) {
	if got := Coalesce(nil, PolicyLast); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestCoalesceKeepsDistinctInstantsWithSameWallClock(t *testing.T) {
	loc := amsterdam(t)
	a := time.Date(2025, 10, 26, 0, 0, 0, 0, time.UTC).In(loc)
	b := time.Date(2025, 10, 26, 1, 0, 0, 0, time.UTC).In(loc)
	if a.Format(models.HourLayout) != b.Format(models.HourLayout) {
		t.Fatalf("test setup: expected identical wall clock")
	}
	out := Coalesce([]models.SeriesItem{{Timestamp: a, Price: fp(1)}, {Timestamp: b, Price: fp(2)}}, PolicyLast)
	if len(out) != 2 {
		t.Fatalf("expected 2 items, got %d", len(out))
	}
}

func TestCoalesceGenerationGroupsAndOrders(t *testing.T) {
	t0 := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)
	items := []models.SeriesItem{
		{Timestamp: t1, Quantity: fp(2), PsrType: "B19"},
		{Timestamp: t0, Quantity: fp(1), PsrType: "B19"},
		{Timestamp: t0, Quantity: fp(5), PsrType: "B16"},
		{Timestamp: t0, Quantity: fp(9), PsrType: "B16"},
		{Timestamp: t0, Quantity: fp(7)},
	}
	out := CoalesceGeneration(items)
	if len(out) != 4 {
		t.Fatalf("expected 4 items, got %d", len(out))
	}
	if out[0].PsrType != "" || out[1].PsrType != "B16" || out[2].PsrType != "B19" || out[3].PsrType != "B19" {
		t.Fatalf("unexpected order: %+v", out)
	}
	if *out[1].Quantity != 9 {
		t.Fatalf("expected last duplicate kept, got %v", *out[1].Quantity)
	}
	if !out[2].Timestamp.Before(out[3].Timestamp) {
		t.Fatalf("expected timestamps ascending within a group")
	}
}

func TestCoalesceIsIdempotent(t *testing.T) {
	for _, policy := range []Policy{PolicyLast, PolicyFirst, PolicyMean} {
		once := Coalesce(dupItems(), policy)
		twice := Coalesce(once, policy)
		if !reflect.DeepEqual(once, twice) {
			t.Fatalf("%s: second pass changed output\n%+v\n%+v", policy, once, twice)
		}
	}
}

func TestCoalesceGenerationIsIdempotent(t *testing.T) {
	t0 := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	items := []models.SeriesItem{
		{Timestamp: t0.Add(time.Hour), Quantity: fp(2), PsrType: "B19"},
		{Timestamp: t0, Quantity: fp(5), PsrType: "B16"},
		{Timestamp: t0, Quantity: fp(9), PsrType: "B16"},
		{Timestamp: t0, Quantity: fp(7), ProductionType: "Solar"},
		{Timestamp: t0, Quantity: fp(8), ProductionType: "Solar"},
	}
	once := CoalesceGeneration(items)
	if twice := CoalesceGeneration(once); !reflect.DeepEqual(once, twice) {
		t.Fatalf("second pass changed output\n%+v\n%+v", once, twice)
	}
}
