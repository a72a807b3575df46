package pubsub

import (
	"context"
	"errors"
	"testing"

	"github.com/freshmarket/storefront-backend/pkg/config"
)

func TestResourceName(t *testing.T) {
	cases := []struct {
		project, id, want string
	}{
		{"fresh-prod", "fc-order-events", "projects/fresh-prod/topics/fc-order-events"},
		{"fresh-prod", " fc-order-events ", "projects/fresh-prod/topics/fc-order-events"},
		{"fresh-prod", "projects/other/topics/t", "projects/other/topics/t"},
		{"fresh-prod", "", ""},
		{"", "t", ""},
	}
	for _, tc := range cases {
		if got := resourceName(tc.project, "topics", tc.id); got != tc.want {
			t.Fatalf("resourceName(%q, %q) = %q, want %q", tc.project, tc.id, got, tc.want)
		}
	}
}

func TestNilClientHandles(t *testing.T) {
	var c *Client
	if c.Publisher("t") != nil {
		t.Fatal("nil client should return nil publisher")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close on nil client: %v", err)
	}
	if err := c.Ping(context.Background()); !errors.Is(err, errNotInitialized) {
		t.Fatalf("expected not initialized, got %v", err)
	}
}

func TestNewClientValidatesConfig(t *testing.T) {
	_, err := NewClient(context.Background(), config.GCPConfig{}, config.PubSubConfig{OrdersTopic: "t"}, nil)
	if !errors.Is(err, errProjectIDRequired) {
		t.Fatalf("expected project id error, got %v", err)
	}
	_, err = NewClient(context.Background(), config.GCPConfig{ProjectID: "p"}, config.PubSubConfig{OrdersTopic: "  "}, nil)
	if !errors.Is(err, errNoTopic) {
		t.Fatalf("expected topic error, got %v", err)
	}
}
