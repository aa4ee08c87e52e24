package analytics

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"herald/internal/storage"
)

type Store interface {
	ListAuditLogs(ctx context.Context, guildID string, since time.Time) ([]storage.AuditLog, error)
}

type Service struct {
	store Store
}

func New(store Store) *Service {
	return &Service{store: store}
}

type Report struct {
	Total   int
	ByLevel map[string]int
	ByEvent map[string]int
}

func (s *Service) Report(ctx context.Context, guildID string, since time.Time) (Report, error) {
	logs, err := s.store.ListAuditLogs(ctx, guildID, since)
	if err != nil {
		return Report{}, err
	}

	report := Report{ByLevel: make(map[string]int), ByEvent: make(map[string]int)}
	for _, log := range logs {
		report.Total++
		report.ByLevel[log.Level]++
		report.ByEvent[log.Event]++
	}
	return report, nil
}

// Events lists the recorded events, most frequent first.
func (r Report) Events() []string {
	events := make([]string, 0, len(r.ByEvent))
	for event := range r.ByEvent {
		events = append(events, event)
	}
	sort.Slice(events, func(i, j int) bool {
		if r.ByEvent[events[i]] != r.ByEvent[events[j]] {
			return r.ByEvent[events[i]] > r.ByEvent[events[j]]
		}
		return events[i] < events[j]
	})
	return events
}

func (r Report) String() string {
	if r.Total == 0 {
		return "No activity recorded."
	}
	lines := make([]string, 0, len(r.ByEvent)+1)
	lines = append(lines, fmt.Sprintf("Total: %d", r.Total))
	for _, event := range r.Events() {
		lines = append(lines, fmt.Sprintf("%s: %d", event, r.ByEvent[event]))
	}
	return strings.Join(lines, "\n")
}
