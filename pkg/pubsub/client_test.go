package pubsub

import (
	"context"
	"errors"
	"testing"

	"github.com/angelmondragon/storefront-checkout/pkg/config"
)

func TestTopicResourceName(t *testing.T) {
	cases := []struct {
		project string
		name    string
		want    string
	}{
		{project: "proj", name: "orders", want: "projects/proj/topics/orders"},
		{project: "proj", name: " projects/other/topics/orders ", want: "projects/other/topics/orders"},
		{project: "", name: "orders", want: ""},
		{project: "proj", name: "  ", want: ""},
	}
	for _, tc := range cases {
		if got := topicResourceName(tc.project, tc.name); got != tc.want {
			t.Fatalf("topicResourceName(%q, %q) = %q, want %q", tc.project, tc.name, got, tc.want)
		}
	}
}

func TestNewClientValidatesConfig(t *testing.T) {
	ctx := context.Background()
	if _, err := NewClient(ctx, config.GCPConfig{}, config.PubSubConfig{NotificationTopic: "t"}, nil); !errors.Is(err, errProjectIDRequired) {
		t.Fatalf("expected project id error, got %v", err)
	}
	if _, err := NewClient(ctx, config.GCPConfig{ProjectID: "p"}, config.PubSubConfig{}, nil); !errors.Is(err, errTopicRequired) {
		t.Fatalf("expected topic error, got %v", err)
	}
}

func TestNilClientHandles(t *testing.T) {
	var c *Client
	if c.NotificationPublisher() != nil {
		t.Fatal("nil client should not hand out publishers")
	}
	if err := c.Ping(context.Background()); err == nil {
		t.Fatal("expected ping on nil client to fail")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close on nil client should be a no-op, got %v", err)
	}
}

func TestClientOptions(t *testing.T) {
	if got := len(clientOptions(config.GCPConfig{})); got != 0 {
		t.Fatalf("expected no options, got %d", got)
	}
	if got := len(clientOptions(config.GCPConfig{CredentialsJSON: "{}", ApplicationCredentials: "/tmp/x"})); got != 1 {
		t.Fatalf("expected a single credentials option, got %d", got)
	}
}
