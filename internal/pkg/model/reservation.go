package model

import (
	"strings"

	"github.com/buildgate/buildgate/internal/pkg/json"
)

// ReservationTag prefixes each reservation entry in a record log,
// so entries can be told apart from regular build output.
const ReservationTag = "#reservation:"

// ReservationEntry is one reservation attempt appended to the target record
// log. Entries are ranked by log position, Id makes each attempt unique.
type ReservationEntry struct {
	AgentName string `json:"agentName"`
	Id        string `json:"id" validate:"required"`
}

// Line serializes the entry to a single log line.
func (e ReservationEntry) Line() string {
	return ReservationTag + json.MustEncodeString(e, false)
}

// ParseReservationEntries extracts reservation entries from raw log lines.
// Foreign and malformed lines are skipped and a duplicated id keeps the
// first occurrence, so the position of a valid entry defines its rank.
func ParseReservationEntries(lines []string) []ReservationEntry {
	entries := make([]ReservationEntry, 0)
	seen := make(map[string]bool)
	for _, line := range lines {
		if !strings.HasPrefix(line, ReservationTag) {
			continue
		}

		entry := ReservationEntry{}
		if err := json.DecodeString(strings.TrimPrefix(line, ReservationTag), &entry); err != nil {
			continue
		}
		if entry.Id == "" || seen[entry.Id] {
			continue
		}

		seen[entry.Id] = true
		entries = append(entries, entry)
	}
	return entries
}
