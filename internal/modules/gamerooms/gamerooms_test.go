package gamerooms

import (
	"reflect"
	"testing"
)

func TestRoomNumber(t *testing.T) {
	cases := []struct {
		name string
		want int
		ok   bool
	}{
		{"Game Room 1", 1, true},
		{"Game Room 12", 12, true},
		{"Game Room 0", 0, false},
		{"Game Room", 0, false},
		{"Game Room x", 0, false},
		{"General", 0, false},
	}
	for _, tc := range cases {
		got, ok := RoomNumber(tc.name)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("RoomNumber(%q) = %d, %v; want %d, %v", tc.name, got, ok, tc.want, tc.ok)
		}
	}
}

func TestNextNumberPrefersGaps(t *testing.T) {
	if got := NextNumber([]int{1, 2, 4}); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
	if got := NextNumber([]int{1, 2, 3}); got != 4 {
		t.Fatalf("expected 4, got %d", got)
	}
	if got := NextNumber(nil); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
}

func TestBuildPlanDeletesEmptyExceptFirst(t *testing.T) {
	plan := BuildPlan([]Room{
		{ChannelID: "a", Number: 1, Occupied: false},
		{ChannelID: "b", Number: 2, Occupied: false},
		{ChannelID: "c", Number: 3, Occupied: true},
	}, 9)

	if !reflect.DeepEqual(plan.Delete, []string{"b"}) {
		t.Fatalf("unexpected deletes: %v", plan.Delete)
	}
	if len(plan.Create) != 0 {
		t.Fatalf("unexpected creates: %v", plan.Create)
	}
}

func TestBuildPlanCreatesWhenEndsOccupied(t *testing.T) {
	plan := BuildPlan([]Room{
		{ChannelID: "a", Number: 1, Occupied: true},
		{ChannelID: "b", Number: 2, Occupied: true},
	}, 9)

	if !reflect.DeepEqual(plan.Create, []int{3}) {
		t.Fatalf("unexpected creates: %v", plan.Create)
	}
}

func TestBuildPlanFillsGap(t *testing.T) {
	plan := BuildPlan([]Room{
		{ChannelID: "a", Number: 1, Occupied: true},
		{ChannelID: "b", Number: 2, Occupied: false},
		{ChannelID: "c", Number: 3, Occupied: true},
	}, 9)

	if !reflect.DeepEqual(plan.Delete, []string{"b"}) {
		t.Fatalf("unexpected deletes: %v", plan.Delete)
	}
	if !reflect.DeepEqual(plan.Create, []int{2}) {
		t.Fatalf("unexpected creates: %v", plan.Create)
	}
}

func TestBuildPlanRespectsCap(t *testing.T) {
	var rooms []Room
	for n := 1; n <= 9; n++ {
		rooms = append(rooms, Room{ChannelID: RoomName(n), Number: n, Occupied: true})
	}
	plan := BuildPlan(rooms, 9)
	if len(plan.Create) != 0 {
		t.Fatalf("expected no creates at the cap, got %v", plan.Create)
	}
}

func TestBuildPlanRecreatesRoomOne(t *testing.T) {
	plan := BuildPlan(nil, 9)
	if !reflect.DeepEqual(plan.Create, []int{1}) {
		t.Fatalf("expected room 1, got %v", plan.Create)
	}
}
