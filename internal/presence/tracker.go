package presence

import (
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"voicekeeper/internal/guildstore"
)

// TimeLayout is the on-disk timestamp format in users_seen.yml.
const TimeLayout = "2006-01-02 15:04:05"

// Tracker owns all per-guild presence state: the unique-visitor ledger,
// in-memory session start times, the daily voice-minute accumulator, and
// the last-seen map. All updates for a guild are serialized by that
// guild's lock and the ledger is re-persisted after every addition, so a
// restart never loses same-day visitors.
type Tracker struct {
	store *guildstore.Store
	loc   *time.Location

	mu     sync.Mutex
	guilds map[string]*guildState
}

type guildState struct {
	mu           sync.Mutex
	loaded       bool
	seen         map[string]struct{}
	sessions     map[string]time.Time
	voiceMinutes int
}

func NewTracker(store *guildstore.Store, loc *time.Location) *Tracker {
	if loc == nil {
		loc = time.UTC
	}
	return &Tracker{
		store:  store,
		loc:    loc,
		guilds: make(map[string]*guildState),
	}
}

func (t *Tracker) guild(guildID string) *guildState {
	t.mu.Lock()
	defer t.mu.Unlock()
	state := t.guilds[guildID]
	if state == nil {
		state = &guildState{
			seen:     make(map[string]struct{}),
			sessions: make(map[string]time.Time),
		}
		t.guilds[guildID] = state
	}
	return state
}

// RecordJoin opens a session, adds the user to the day's ledger, and
// stamps last-seen. It returns the user's previous last-seen time, if any.
func (t *Tracker) RecordJoin(guildID, userID string, now time.Time) (time.Time, bool, error) {
	state := t.guild(guildID)
	state.mu.Lock()
	defer state.mu.Unlock()

	t.loadLocked(guildID, state)
	state.sessions[userID] = now
	state.seen[userID] = struct{}{}
	if err := t.persistSeenLocked(guildID, state); err != nil {
		return time.Time{}, false, err
	}
	return t.stampLastSeen(guildID, userID, now)
}

// RecordLeave closes the user's session and returns its length in whole
// seconds. A missing session start (e.g. the user connected before a
// restart that predates the startup sweep) defaults to now for a zero
// duration rather than failing.
func (t *Tracker) RecordLeave(guildID, userID string, now time.Time) (int, error) {
	state := t.guild(guildID)
	state.mu.Lock()
	defer state.mu.Unlock()

	t.loadLocked(guildID, state)
	duration := state.closeSession(userID, now)
	_, _, err := t.stampLastSeen(guildID, userID, now)
	return duration, err
}

// RecordSwitch closes the session in the source channel and immediately
// opens a fresh one, returning the closed session's length in seconds.
func (t *Tracker) RecordSwitch(guildID, userID string, now time.Time) (int, error) {
	state := t.guild(guildID)
	state.mu.Lock()
	defer state.mu.Unlock()

	t.loadLocked(guildID, state)
	duration := state.closeSession(userID, now)
	state.sessions[userID] = now
	_, _, err := t.stampLastSeen(guildID, userID, now)
	return duration, err
}

func (s *guildState) closeSession(userID string, now time.Time) int {
	start, ok := s.sessions[userID]
	if !ok {
		start = now
	}
	delete(s.sessions, userID)
	duration := int(now.Sub(start).Seconds())
	if duration < 0 {
		duration = 0
	}
	s.voiceMinutes += duration / 60
	return duration
}

// Populate seeds the ledger and sessions from members already connected,
// run at startup and after each daily reset so users in a channel across
// the boundary are neither lost nor double counted.
func (t *Tracker) Populate(guildID string, userIDs []string, now time.Time) error {
	state := t.guild(guildID)
	state.mu.Lock()
	defer state.mu.Unlock()

	t.loadLocked(guildID, state)
	for _, userID := range userIDs {
		if userID == "" {
			continue
		}
		state.seen[userID] = struct{}{}
		if _, ok := state.sessions[userID]; !ok {
			state.sessions[userID] = now
		}
	}
	return t.persistSeenLocked(guildID, state)
}

// SeenCount is the number of unique visitors recorded since the last reset.
func (t *Tracker) SeenCount(guildID string) int {
	state := t.guild(guildID)
	state.mu.Lock()
	defer state.mu.Unlock()

	t.loadLocked(guildID, state)
	return len(state.seen)
}

// DayTotals reports the day's unique-visitor count and voice minutes,
// counting sessions still open as if they closed at now. Nothing is
// mutated, so a failed downstream write can retry against intact state.
func (t *Tracker) DayTotals(guildID string, now time.Time) (uniqueUsers, voiceMinutes int) {
	state := t.guild(guildID)
	state.mu.Lock()
	defer state.mu.Unlock()

	t.loadLocked(guildID, state)
	voiceMinutes = state.voiceMinutes
	for _, start := range state.sessions {
		if elapsed := int(now.Sub(start).Seconds()); elapsed > 0 {
			voiceMinutes += elapsed / 60
		}
	}
	return len(state.seen), voiceMinutes
}

// ResetDay reads out the day's totals and clears the ledger and minute
// accumulator. Sessions still open at the boundary are credited up to now
// and restarted, so their time lands in the day it was actually spent.
func (t *Tracker) ResetDay(guildID string, now time.Time) (uniqueUsers, voiceMinutes int, err error) {
	state := t.guild(guildID)
	state.mu.Lock()
	defer state.mu.Unlock()

	t.loadLocked(guildID, state)
	for userID, start := range state.sessions {
		elapsed := int(now.Sub(start).Seconds())
		if elapsed > 0 {
			state.voiceMinutes += elapsed / 60
		}
		state.sessions[userID] = now
	}
	uniqueUsers = len(state.seen)
	voiceMinutes = state.voiceMinutes
	state.seen = make(map[string]struct{})
	state.voiceMinutes = 0
	return uniqueUsers, voiceMinutes, t.persistSeenLocked(guildID, state)
}

// LastSeen returns the stored last-seen time for a user, if any.
func (t *Tracker) LastSeen(guildID, userID string) (time.Time, bool) {
	state := t.guild(guildID)
	state.mu.Lock()
	defer state.mu.Unlock()

	seen := t.readLastSeen(guildID)
	raw, ok := seen[userID]
	if !ok {
		return time.Time{}, false
	}
	then, err := time.ParseInLocation(TimeLayout, raw, t.loc)
	if err != nil {
		return time.Time{}, false
	}
	return then, true
}

// loadLocked restores the persisted ledger on a guild's first touch after
// process start. Caller holds the guild lock.
func (t *Tracker) loadLocked(guildID string, state *guildState) {
	if state.loaded {
		return
	}
	state.loaded = true

	dir, err := t.store.GuildDir(guildID)
	if err != nil {
		return
	}
	data, err := os.ReadFile(filepath.Join(dir, "voice_activity.yml"))
	if err != nil {
		return
	}
	var ids []string
	if err := yaml.Unmarshal(data, &ids); err != nil {
		return
	}
	for _, id := range ids {
		if id != "" {
			state.seen[id] = struct{}{}
		}
	}
}

func (t *Tracker) persistSeenLocked(guildID string, state *guildState) error {
	dir, err := t.store.GuildDir(guildID)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(state.seen))
	for id := range state.seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return guildstore.WriteYAML(filepath.Join(dir, "voice_activity.yml"), ids)
}

// stampLastSeen records now as the user's last-seen time and returns the
// previous value. Caller holds the guild lock.
func (t *Tracker) stampLastSeen(guildID, userID string, now time.Time) (time.Time, bool, error) {
	seen := t.readLastSeen(guildID)
	var prev time.Time
	var ok bool
	if raw, exists := seen[userID]; exists {
		if parsed, err := time.ParseInLocation(TimeLayout, raw, t.loc); err == nil {
			prev = parsed
			ok = true
		}
	}

	seen[userID] = now.In(t.loc).Format(TimeLayout)
	dir, err := t.store.GuildDir(guildID)
	if err != nil {
		return prev, ok, err
	}
	return prev, ok, guildstore.WriteYAML(filepath.Join(dir, "users_seen.yml"), seen)
}

func (t *Tracker) readLastSeen(guildID string) map[string]string {
	seen := make(map[string]string)
	dir, err := t.store.GuildDir(guildID)
	if err != nil {
		return seen
	}
	data, err := os.ReadFile(filepath.Join(dir, "users_seen.yml"))
	if err != nil {
		return seen
	}
	// Partial or corrupt files read as empty, never as a failure.
	_ = yaml.Unmarshal(data, &seen)
	return seen
}
