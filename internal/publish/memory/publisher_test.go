package memory

import (
	"context"
	"testing"

	"github.com/searchscout/searchscout/internal/pattern"
)

func TestPublisherStoresMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	id1, err := pub.Publish(context.Background(), "discovery-events", map[string]string{"domain": "example.com"})
	if err != nil || id1 != "scout-mem-1" {
		t.Fatalf("unexpected publish result id=%s err=%v", id1, err)
	}
	id2, err := pub.Publish(context.Background(), "discovery-events", "payload")
	if err != nil || id2 != "scout-mem-2" {
		t.Fatalf("unexpected publish result id=%s err=%v", id2, err)
	}

	msgs := pub.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Topic != "discovery-events" {
		t.Fatalf("topic not recorded correctly: %+v", msgs)
	}

	msgs[0].Topic = "modified"
	if pub.Messages()[0].Topic == "modified" {
		t.Fatal("expected Messages() to return a copy")
	}
}

func TestPublisherReports(t *testing.T) {
	t.Parallel()

	pub := New()
	if _, err := pub.Publish(context.Background(), "discovery-events", "not a report"); err != nil {
		t.Fatalf("publish: %v", err)
	}
	want := pattern.Report{RunID: "run-1", Mode: pattern.ModeDiscover}
	if _, err := pub.Publish(context.Background(), "discovery-events", want); err != nil {
		t.Fatalf("publish: %v", err)
	}

	reports := pub.Reports()
	if len(reports) != 1 {
		t.Fatalf("expected 1 report, got %d", len(reports))
	}
	if reports[0].RunID != "run-1" || reports[0].Mode != pattern.ModeDiscover {
		t.Fatalf("unexpected report: %+v", reports[0])
	}
}
