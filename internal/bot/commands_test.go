package bot

import (
	"strings"
	"testing"
)

func channelFinder(names ...string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		for _, known := range names {
			if name == known {
				return "id-" + strings.ReplaceAll(known, " ", "-"), true
			}
		}
		return "", false
	}
}

func TestParseMoveTargetDestinationOnly(t *testing.T) {
	find := channelFinder("Member General", "Twerk")

	dest, sourceID, sourceName, ok := parseMoveTarget([]string{"Member", "General"}, find)
	if !ok {
		t.Fatalf("expected a match")
	}
	if dest != "Member General" || sourceID != "" || sourceName != "" {
		t.Fatalf("unexpected parse: %q %q %q", dest, sourceID, sourceName)
	}
}

func TestParseMoveTargetExplicitSource(t *testing.T) {
	find := channelFinder("Member General", "Twerk")

	dest, sourceID, sourceName, ok := parseMoveTarget([]string{"Member", "General", "Twerk"}, find)
	if !ok {
		t.Fatalf("expected a match")
	}
	if dest != "Member General" || sourceName != "Twerk" || sourceID != "id-Twerk" {
		t.Fatalf("unexpected parse: %q %q %q", dest, sourceID, sourceName)
	}
}

func TestParseMoveTargetMultiWordSource(t *testing.T) {
	find := channelFinder("Work", "Game Room 1")

	dest, _, sourceName, ok := parseMoveTarget([]string{"Work", "Game", "Room", "1"}, find)
	if !ok {
		t.Fatalf("expected a match")
	}
	if dest != "Work" || sourceName != "Game Room 1" {
		t.Fatalf("unexpected parse: %q %q", dest, sourceName)
	}
}

func TestParseMoveTargetNoMatch(t *testing.T) {
	find := channelFinder("Member General")

	if _, _, _, ok := parseMoveTarget([]string{"Lounge"}, find); ok {
		t.Fatalf("expected no match for unknown destination")
	}
	// A known destination with trailing junk that names no channel.
	if _, _, _, ok := parseMoveTarget([]string{"Member", "General", "Nowhere"}, find); ok {
		t.Fatalf("expected no match for unknown source")
	}
}
