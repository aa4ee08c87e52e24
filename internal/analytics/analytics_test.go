package analytics

import (
	"context"
	"testing"
	"time"

	"herald/internal/storage"
)

type fakeStore struct {
	logs []storage.AuditLog
}

func (f fakeStore) ListAuditLogs(_ context.Context, guildID string, since time.Time) ([]storage.AuditLog, error) {
	var out []storage.AuditLog
	for _, log := range f.logs {
		if log.GuildID == guildID && !log.CreatedAt.Before(since) {
			out = append(out, log)
		}
	}
	return out, nil
}

func TestReport(t *testing.T) {
	now := time.Now()
	svc := New(fakeStore{logs: []storage.AuditLog{
		{GuildID: "g1", Level: "INFO", Event: "message_sent", CreatedAt: now},
		{GuildID: "g1", Level: "INFO", Event: "message_sent", CreatedAt: now},
		{GuildID: "g1", Level: "WARN", Event: "render_failed", CreatedAt: now},
		{GuildID: "g1", Level: "INFO", Event: "stats_renamed", CreatedAt: now.Add(-48 * time.Hour)},
		{GuildID: "g2", Level: "INFO", Event: "message_sent", CreatedAt: now},
	}})

	report, err := svc.Report(context.Background(), "g1", now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if report.Total != 3 {
		t.Fatalf("expected total 3, got %d", report.Total)
	}
	if report.ByLevel["WARN"] != 1 || report.ByLevel["INFO"] != 2 {
		t.Fatalf("unexpected levels %v", report.ByLevel)
	}
	if want := "Total: 3\nmessage_sent: 2\nrender_failed: 1"; report.String() != want {
		t.Fatalf("expected %q, got %q", want, report.String())
	}
}

func TestEmptyReport(t *testing.T) {
	report, err := New(fakeStore{}).Report(context.Background(), "g1", time.Now())
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if report.String() != "No activity recorded." {
		t.Fatalf("unexpected summary %q", report.String())
	}
}
