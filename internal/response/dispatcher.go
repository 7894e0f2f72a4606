// Package response persists confirmed threats and orchestrates the alert,
// audit, and mitigation side effects.
package response

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"sentinel-engine/internal/detection"
	"sentinel-engine/internal/threat"
)

// ErrPersistence is returned when the threat store write fails. It is
// fatal for that threat event: downstream steps depend on a stable
// identifier, so nothing else is attempted.
var ErrPersistence = errors.New("threat persistence failed")

// ThreatStore persists threat events, idempotent by identifier.
type ThreatStore interface {
	Upsert(ctx context.Context, event *threat.Event) error
}

// AuditLog is the append-only audit event log.
type AuditLog interface {
	Write(ctx context.Context, eventType, severity, principal, sourceAddress, action, result string, details map[string]any) error
}

// Notifier delivers structured alerts to interested parties.
type Notifier interface {
	SendAlert(ctx context.Context, alertType, severity, message string, data map[string]any, targetRoles []string) error
}

// Mitigations executes automated remediations. Blocks and locks are
// time-bounded; suspension is indefinite and requires human reinstatement.
type Mitigations interface {
	BlockAddress(ctx context.Context, addr string, ttlSeconds int) error
	LockAccount(ctx context.Context, userID string, ttlSeconds int) error
	SuspendAccount(ctx context.Context, userID string) error
}

// operatorRoles is the role group alerts are addressed to.
var operatorRoles = []string{"security_operator"}

// Config configures the dispatcher.
type Config struct {
	CallTimeout time.Duration `yaml:"call_timeout"`
}

// DefaultConfig returns the default dispatcher configuration.
func DefaultConfig() Config {
	return Config{CallTimeout: 5 * time.Second}
}

// Dispatcher handles one candidate threat event at a time: persist,
// alert, audit, then mitigate. Alert, audit, and each mitigation are
// failure-isolated; only persistence failure aborts.
type Dispatcher struct {
	store       ThreatStore
	audit       AuditLog
	notifier    Notifier
	mitigations Mitigations
	rules       detection.RuleSet
	config      Config

	autoResponses atomic.Uint64
}

// NewDispatcher creates a dispatcher with the given collaborators.
func NewDispatcher(store ThreatStore, audit AuditLog, notifier Notifier, mitigations Mitigations, rules detection.RuleSet, cfg Config) *Dispatcher {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultConfig().CallTimeout
	}
	return &Dispatcher{
		store:       store,
		audit:       audit,
		notifier:    notifier,
		mitigations: mitigations,
		rules:       rules,
		config:      cfg,
	}
}

// AutoResponses returns the number of mitigations actually executed.
func (d *Dispatcher) AutoResponses() uint64 {
	return d.autoResponses.Load()
}

// Handle processes one candidate threat event.
func (d *Dispatcher) Handle(ctx context.Context, t *threat.Event) error {
	if err := d.persist(ctx, t); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPersistence, t.ID, err)
	}

	d.sendAlert(ctx, t)
	d.writeAudit(ctx, t)

	if t.AutoResponseTaken {
		executed := d.mitigate(ctx, t)
		if executed > 0 && t.Status.CanTransition(threat.StatusMitigated) {
			t.Status = threat.StatusMitigated
			// Best effort: the threat is already persisted under its
			// identifier, the status update just rides the same upsert.
			if err := d.persist(ctx, t); err != nil {
				slog.Warn("failed to persist mitigated status", "threat_id", t.ID, "error", err)
			}
		}
	}

	return nil
}

func (d *Dispatcher) persist(ctx context.Context, t *threat.Event) error {
	pctx, cancel := context.WithTimeout(ctx, d.config.CallTimeout)
	defer cancel()
	return d.store.Upsert(pctx, t)
}

func (d *Dispatcher) sendAlert(ctx context.Context, t *threat.Event) {
	actx, cancel := context.WithTimeout(ctx, d.config.CallTimeout)
	defer cancel()

	data := map[string]any{
		"threat_id":           t.ID,
		"threat_type":         string(t.Type),
		"source_ip":           t.SourceIP,
		"confidence":          t.Confidence,
		"risk_score":          t.RiskScore,
		"recommended_actions": t.RecommendedActions,
	}
	if t.Username != "" {
		data["username"] = t.Username
	}

	err := d.notifier.SendAlert(actx, "threat_detected", string(t.Severity), t.Description, data, operatorRoles)
	if err != nil {
		slog.Error("alert delivery failed", "threat_id", t.ID, "error", err)
	}
}

func (d *Dispatcher) writeAudit(ctx context.Context, t *threat.Event) {
	actx, cancel := context.WithTimeout(ctx, d.config.CallTimeout)
	defer cancel()

	details := map[string]any{
		"threat_id":  t.ID,
		"confidence": t.Confidence,
		"risk_score": t.RiskScore,
		"method":     t.DetectionMethod,
	}

	err := d.audit.Write(actx, "threat_detected", auditSeverity(t.Severity), t.UserID,
		t.SourceIP, string(t.Type), "detected", details)
	if err != nil {
		slog.Error("audit write failed", "threat_id", t.ID, "error", err)
	}
}

// auditSeverity maps threat severity onto the audit log's severity scale.
func auditSeverity(s threat.Severity) string {
	switch s {
	case threat.SeverityCritical:
		return "critical"
	case threat.SeverityHigh:
		return "error"
	case threat.SeverityMedium:
		return "warning"
	default:
		return "info"
	}
}

// mitigate executes the type-specific mitigations and returns how many
// actually ran. Each call is independent: one failing does not block the
// others or roll anything back.
func (d *Dispatcher) mitigate(ctx context.Context, t *threat.Event) int {
	rule := d.rules.Get(t.Type)
	executed := 0

	switch t.Type {
	case threat.TypeBruteForce:
		if d.blockAddress(ctx, t, int(rule.BlockTTL.Seconds())) {
			executed++
		}
		if t.UserID != "" && d.lockAccount(ctx, t, int(rule.LockTTL.Seconds())) {
			executed++
		}
	case threat.TypeMaliciousSource:
		if d.blockAddress(ctx, t, int(rule.BlockTTL.Seconds())) {
			executed++
		}
	case threat.TypePrivilegeEscalation:
		if t.UserID != "" && d.suspendAccount(ctx, t) {
			executed++
		}
	}

	d.autoResponses.Add(uint64(executed))
	return executed
}

func (d *Dispatcher) blockAddress(ctx context.Context, t *threat.Event, ttlSeconds int) bool {
	mctx, cancel := context.WithTimeout(ctx, d.config.CallTimeout)
	defer cancel()

	if err := d.mitigations.BlockAddress(mctx, t.SourceIP, ttlSeconds); err != nil {
		slog.Error("address block failed",
			"threat_id", t.ID,
			"address", t.SourceIP,
			"error", err,
		)
		return false
	}
	slog.Info("blocked address", "threat_id", t.ID, "address", t.SourceIP, "ttl_seconds", ttlSeconds)
	return true
}

func (d *Dispatcher) lockAccount(ctx context.Context, t *threat.Event, ttlSeconds int) bool {
	mctx, cancel := context.WithTimeout(ctx, d.config.CallTimeout)
	defer cancel()

	if err := d.mitigations.LockAccount(mctx, t.UserID, ttlSeconds); err != nil {
		slog.Error("account lock failed",
			"threat_id", t.ID,
			"user_id", t.UserID,
			"error", err,
		)
		return false
	}
	slog.Info("locked account", "threat_id", t.ID, "user_id", t.UserID, "ttl_seconds", ttlSeconds)
	return true
}

func (d *Dispatcher) suspendAccount(ctx context.Context, t *threat.Event) bool {
	mctx, cancel := context.WithTimeout(ctx, d.config.CallTimeout)
	defer cancel()

	if err := d.mitigations.SuspendAccount(mctx, t.UserID); err != nil {
		slog.Error("account suspension failed",
			"threat_id", t.ID,
			"user_id", t.UserID,
			"error", err,
		)
		return false
	}
	slog.Info("suspended account", "threat_id", t.ID, "user_id", t.UserID)
	return true
}
