package engine

import (
	"context"
	"testing"
	"time"

	"sentinel-engine/internal/cache"
	"sentinel-engine/internal/detection"
	"sentinel-engine/internal/response"
	"sentinel-engine/internal/schema"
	"sentinel-engine/internal/strategy"
	"sentinel-engine/internal/threat"
)

type memoryThreatStore struct {
	rows map[string]threat.Event
}

func (s *memoryThreatStore) Upsert(ctx context.Context, t *threat.Event) error {
	s.rows[t.ID] = *t
	return nil
}

type nopAudit struct{ writes int }

func (a *nopAudit) Write(ctx context.Context, eventType, severity, principal, sourceAddress, action, result string, details map[string]any) error {
	a.writes++
	return nil
}

type nopNotifier struct{ alerts int }

func (n *nopNotifier) SendAlert(ctx context.Context, alertType, severity, message string, data map[string]any, targetRoles []string) error {
	n.alerts++
	return nil
}

// newPipeline wires real strategies and a real dispatcher over in-memory
// collaborators, the way the process entry point does in production.
func newPipeline(t *testing.T, client *cache.MockClient) (*Engine, *memoryThreatStore, *nopNotifier) {
	t.Helper()

	rules := detection.DefaultRules()
	directory := cache.NewDirectory(client)

	strategies := []strategy.Strategy{
		strategy.NewBruteForce(rules.Get(threat.TypeBruteForce), client),
		strategy.NewPrivilegeEscalation(rules.Get(threat.TypePrivilegeEscalation), directory),
		strategy.NewMaliciousSource(rules.Get(threat.TypeMaliciousSource), client),
	}

	store := &memoryThreatStore{rows: make(map[string]threat.Event)}
	notifier := &nopNotifier{}
	dispatcher := response.NewDispatcher(store, &nopAudit{}, notifier,
		cache.NewMitigations(client), rules, response.DefaultConfig())

	return New(schema.NewValidator(), strategies, dispatcher, DefaultConfig()), store, notifier
}

func TestPipelineBruteForceScenario(t *testing.T) {
	client := cache.NewMockClient()
	e, store, notifier := newPipeline(t, client)
	ctx := context.Background()

	// Bucket-aligned so all six events share one identifier bucket.
	base := time.Now().UTC().Truncate(5 * time.Minute).Add(-time.Hour)
	var all []*threat.Event
	for i := 0; i < 6; i++ {
		event := &schema.ActivityEvent{
			UserID:    "user-alice",
			Username:  "alice",
			IPAddress: "10.0.0.5",
			Category:  schema.CategoryLoginFailed,
			Timestamp: base.Add(time.Duration(i) * 10 * time.Second),
		}
		threats, err := e.Process(ctx, event)
		if err != nil {
			t.Fatalf("event %d: %v", i+1, err)
		}
		all = append(all, threats...)
	}

	// Events 5 and 6 cross the threshold; both collapse to one stored row.
	if len(all) != 2 {
		t.Fatalf("got %d threats, want 2 (one per event past the threshold)", len(all))
	}
	if all[0].ID != all[1].ID {
		t.Error("re-detections within the identifier bucket must share one ID")
	}
	if len(store.rows) != 1 {
		t.Errorf("persisted rows = %d, want 1 idempotent row", len(store.rows))
	}

	stored := store.rows[all[0].ID]
	if stored.Type != threat.TypeBruteForce || stored.Severity != threat.SeverityHigh {
		t.Errorf("stored threat = %s/%s, want brute_force/high", stored.Type, stored.Severity)
	}
	if !stored.AutoResponseTaken {
		t.Error("auto response should be taken")
	}
	if stored.Status != threat.StatusMitigated {
		t.Errorf("stored status = %s, want mitigated", stored.Status)
	}

	mitigations := cache.NewMitigations(client)
	blocked, err := mitigations.AddressBlocked(ctx, "10.0.0.5")
	if err != nil || !blocked {
		t.Error("source address should be blocked")
	}
	locked, err := mitigations.AccountLocked(ctx, "user-alice")
	if err != nil || !locked {
		t.Error("account should be locked")
	}

	if notifier.alerts != 2 {
		t.Errorf("alerts sent = %d, want one per detection", notifier.alerts)
	}
}

func TestPipelinePrivilegeEscalationScenario(t *testing.T) {
	client := cache.NewMockClient()
	e, store, _ := newPipeline(t, client)
	ctx := context.Background()

	directory := cache.NewDirectory(client)
	if err := directory.SetRole(ctx, "user-dana", "soc_analyst"); err != nil {
		t.Fatal(err)
	}

	threats, err := e.Process(ctx, &schema.ActivityEvent{
		UserID:    "user-dana",
		Username:  "dana",
		IPAddress: "192.168.1.9",
		Action:    "execute",
		Resource:  "sudo /usr/bin/passwd",
		Category:  schema.CategoryPrivilegedAction,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(threats) != 1 {
		t.Fatalf("got %d threats, want 1", len(threats))
	}

	detected := threats[0]
	if detected.Type != threat.TypePrivilegeEscalation {
		t.Errorf("type = %s, want privilege_escalation", detected.Type)
	}
	if detected.Severity != threat.SeverityCritical {
		t.Errorf("severity = %s, want critical", detected.Severity)
	}
	if !detected.AutoResponseTaken {
		t.Error("auto response should be taken")
	}

	suspended, err := cache.NewMitigations(client).AccountSuspended(ctx, "user-dana")
	if err != nil || !suspended {
		t.Error("account should be suspended")
	}
	if len(store.rows) != 1 {
		t.Errorf("persisted rows = %d, want 1", len(store.rows))
	}
}

func TestPipelineMaliciousSourceScenario(t *testing.T) {
	client := cache.NewMockClient()
	e, _, _ := newPipeline(t, client)
	ctx := context.Background()

	if err := client.SetAdd(ctx, strategy.MaliciousIPSet, "198.51.100.66"); err != nil {
		t.Fatal(err)
	}

	threats, err := e.Process(ctx, &schema.ActivityEvent{
		UserID:    "user-eve",
		IPAddress: "198.51.100.66",
		Category:  schema.CategoryLoginSuccess,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(threats) != 1 {
		t.Fatalf("got %d threats, want 1", len(threats))
	}

	blocked, err := cache.NewMitigations(client).AddressBlocked(ctx, "198.51.100.66")
	if err != nil || !blocked {
		t.Error("listed address should be blocked")
	}
}

func TestPipelineBenignEvent(t *testing.T) {
	client := cache.NewMockClient()
	e, store, notifier := newPipeline(t, client)

	threats, err := e.Process(context.Background(), &schema.ActivityEvent{
		UserID:    "user-bob",
		Username:  "bob",
		IPAddress: "192.168.1.50",
		Resource:  "/api/reports",
		Action:    "read",
		Category:  schema.CategoryDataAccess,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(threats) != 0 {
		t.Errorf("benign event produced %d threats", len(threats))
	}
	if len(store.rows) != 0 || notifier.alerts != 0 {
		t.Error("benign event must produce no side effects")
	}
}
