package schedule

import (
	"slices"
	"testing"
	"time"
)

func TestTiersForMinute(t *testing.T) {
	t.Parallel()

	cases := map[int][]int{
		0:  {1, 2, 3},
		15: {1, 2, 3},
		25: {1, 2, 3},
		3:  {1, 2},
		9:  {1, 2},
		21: {1, 2},
		1:  {1},
		7:  {1},
		59: {1},
	}
	for minute, want := range cases {
		if got := TiersForMinute(minute); !slices.Equal(got, want) {
			t.Fatalf("minute %d: got %v want %v", minute, got, want)
		}
	}
}

func TestParseOverride(t *testing.T) {
	t.Parallel()

	override, err := ParseOverride("")
	if err != nil || override != nil {
		t.Fatalf("expected nil override for empty input, got %+v err=%v", override, err)
	}

	override, err = ParseOverride(" ALL ")
	if err != nil {
		t.Fatalf("parse all: %v", err)
	}
	if !override.All || !slices.Equal(override.Tiers, []int{1, 2, 3}) {
		t.Fatalf("unexpected all override: %+v", override)
	}

	override, err = ParseOverride("2,1")
	if err != nil {
		t.Fatalf("parse 2,1: %v", err)
	}
	if override.All || !slices.Equal(override.Tiers, []int{1, 2}) {
		t.Fatalf("unexpected 1,2 override: %+v", override)
	}

	override, err = ParseOverride("1,2,3")
	if err != nil || !override.All {
		t.Fatalf("expected 1,2,3 to behave like all, got %+v err=%v", override, err)
	}
}

func TestParseOverrideRejectsUnknownSelections(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"4", "2", "1,3", "x", "1,,2"} {
		if _, err := ParseOverride(raw); err == nil {
			t.Fatalf("expected %q to be rejected", raw)
		}
	}
}

func TestDecideUsesSweepCapOnlyForExplicitAll(t *testing.T) {
	t.Parallel()

	caps := Caps{Routine: 10, Sweep: 50}
	atFive := time.Date(2026, 10, 19, 12, 5, 0, 0, time.UTC)

	plan := Decide(atFive, nil, caps)
	if !slices.Equal(plan.Tiers, []int{1, 2, 3}) || plan.Limit != 10 {
		t.Fatalf("unexpected clock plan: %+v", plan)
	}

	all, _ := ParseOverride("all")
	plan = Decide(atFive, all, caps)
	if plan.Limit != 50 {
		t.Fatalf("expected sweep cap for all override, got %d", plan.Limit)
	}

	one, _ := ParseOverride("1")
	plan = Decide(atFive, one, caps)
	if !slices.Equal(plan.Tiers, []int{1}) || plan.Limit != 10 {
		t.Fatalf("unexpected tier-1 override plan: %+v", plan)
	}
	if plan.Label() != "1" {
		t.Fatalf("unexpected label: %q", plan.Label())
	}
}
