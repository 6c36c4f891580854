package gamerooms

import (
	"sort"
	"strconv"
	"strings"
)

const namePrefix = "Game Room "

// Room is one numbered voice channel inside a monitored category.
type Room struct {
	ChannelID string
	Number    int
	Occupied  bool
}

// Plan is the reconciliation output for one category: channel IDs to
// delete and room numbers to create, in order.
type Plan struct {
	Delete []string
	Create []int
}

// RoomNumber parses a channel name of the form "Game Room N". Names
// outside that form are not managed and return false.
func RoomNumber(name string) (int, bool) {
	if !strings.HasPrefix(name, namePrefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(name, namePrefix))
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// RoomName renders the managed channel name for a number.
func RoomName(n int) string {
	return namePrefix + strconv.Itoa(n)
}

// NextNumber picks the lowest unused room number, preferring gaps left
// by deleted rooms over extending the sequence.
func NextNumber(existing []int) int {
	used := make(map[int]bool, len(existing))
	max := 0
	for _, n := range existing {
		used[n] = true
		if n > max {
			max = n
		}
	}
	for n := 1; n <= max; n++ {
		if !used[n] {
			return n
		}
	}
	return max + 1
}

// BuildPlan reconciles one category's rooms. Empty rooms other than
// room 1 are deleted; a new room is created when both the first and the
// last surviving rooms are occupied and the count is under the cap.
func BuildPlan(rooms []Room, maxChannels int) Plan {
	sorted := make([]Room, len(rooms))
	copy(sorted, rooms)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Number < sorted[j].Number })

	var plan Plan
	var kept []Room
	for _, room := range sorted {
		if !room.Occupied && room.Number != 1 {
			plan.Delete = append(plan.Delete, room.ChannelID)
			continue
		}
		kept = append(kept, room)
	}

	if len(kept) == 0 {
		plan.Create = append(plan.Create, 1)
		return plan
	}
	if len(kept) >= maxChannels {
		return plan
	}

	first := kept[0]
	last := kept[len(kept)-1]
	if first.Occupied && last.Occupied {
		numbers := make([]int, len(kept))
		for i, room := range kept {
			numbers[i] = room.Number
		}
		plan.Create = append(plan.Create, NextNumber(numbers))
	}
	return plan
}
