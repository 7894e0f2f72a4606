package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

type fakeChannel struct {
	name string
	err  error

	mu   sync.Mutex
	sent []*Alert
}

func (f *fakeChannel) Name() string { return f.name }

func (f *fakeChannel) Send(ctx context.Context, alert *Alert) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, alert)
	return nil
}

func TestSendAlertFansOut(t *testing.T) {
	c1 := &fakeChannel{name: "c1"}
	c2 := &fakeChannel{name: "c2"}
	n := NewNotifier(c1, c2)

	err := n.SendAlert(context.Background(), "threat_detected", "high", "6 failed logins",
		map[string]any{"source_ip": "10.0.0.5"}, []string{"security_operator"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(c1.sent) != 1 || len(c2.sent) != 1 {
		t.Fatalf("delivery counts = %d/%d, want 1/1", len(c1.sent), len(c2.sent))
	}

	alert := c1.sent[0]
	if alert.Type != "threat_detected" || alert.Severity != "high" {
		t.Errorf("alert fields wrong: %+v", alert)
	}
	if len(alert.TargetRoles) != 1 || alert.TargetRoles[0] != "security_operator" {
		t.Errorf("target roles = %v", alert.TargetRoles)
	}
	if alert.ID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Error("alert should carry a generated identifier")
	}
}

func TestSendAlertIsolatesChannelFailure(t *testing.T) {
	failing := &fakeChannel{name: "failing", err: errors.New("webhook down")}
	healthy := &fakeChannel{name: "healthy"}
	n := NewNotifier(failing, healthy)

	err := n.SendAlert(context.Background(), "threat_detected", "high", "test", nil, nil)
	if err != nil {
		t.Fatalf("one failing channel must not fail delivery: %v", err)
	}
	if len(healthy.sent) != 1 {
		t.Error("healthy channel should still deliver")
	}
}

func TestSendAlertAllChannelsFailed(t *testing.T) {
	n := NewNotifier(
		&fakeChannel{name: "a", err: errors.New("down")},
		&fakeChannel{name: "b", err: errors.New("down")},
	)

	if err := n.SendAlert(context.Background(), "threat_detected", "high", "test", nil, nil); err == nil {
		t.Error("expected error when every channel fails")
	}
}

func TestSendAlertNoChannels(t *testing.T) {
	n := NewNotifier()
	if err := n.SendAlert(context.Background(), "threat_detected", "high", "test", nil, nil); err == nil {
		t.Error("expected error with no registered channels")
	}
}

type fakePublisher struct {
	channel string
	payload []byte
	err     error
}

func (f *fakePublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	if f.err != nil {
		return f.err
	}
	f.channel = channel
	f.payload = payload
	return nil
}

func TestPubSubChannelPublishesJSON(t *testing.T) {
	pub := &fakePublisher{}
	ch := NewPubSubChannel(pub, "")

	if ch.Name() != "pubsub:alerts:security" {
		t.Errorf("name = %q, want default channel", ch.Name())
	}

	n := NewNotifier(ch)
	err := n.SendAlert(context.Background(), "threat_detected", "critical", "escalation",
		map[string]any{"user_id": "user-dana"}, []string{"security_operator"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if pub.channel != "alerts:security" {
		t.Errorf("published on %q, want alerts:security", pub.channel)
	}

	var decoded Alert
	if err := json.Unmarshal(pub.payload, &decoded); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if decoded.Severity != "critical" {
		t.Errorf("decoded severity = %q", decoded.Severity)
	}
}

func TestWebhookChannelPostsAlert(t *testing.T) {
	var received Alert
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ch := NewWebhookChannel("ops", server.URL, map[string]string{"Authorization": "Bearer token"})
	n := NewNotifier(ch)

	err := n.SendAlert(context.Background(), "threat_detected", "high", "blocked address", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if received.Type != "threat_detected" {
		t.Errorf("received type = %q", received.Type)
	}
	if gotAuth != "Bearer token" {
		t.Errorf("authorization header = %q", gotAuth)
	}
}

func TestWebhookChannelNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	ch := NewWebhookChannel("ops", server.URL, nil)
	if err := ch.Send(context.Background(), &Alert{Type: "threat_detected"}); err == nil {
		t.Error("expected error for non-2xx response")
	}
}
