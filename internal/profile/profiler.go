package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"sentinel-engine/internal/schema"
)

// ActivityReader provides read-only access to historical activity.
type ActivityReader interface {
	Query(ctx context.Context, userID string, since, until time.Time) ([]schema.ActivityRecord, error)
}

// Cache stores profile snapshots with a TTL. Backed by Redis in
// production; keyed bytes so the profiler owns the serialization.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Config configures the profiler.
type Config struct {
	Window      time.Duration `yaml:"window"`       // trailing history window
	CacheTTL    time.Duration `yaml:"cache_ttl"`    // profile snapshot TTL
	CallTimeout time.Duration `yaml:"call_timeout"` // per collaborator call
}

// DefaultConfig returns the default profiler configuration.
func DefaultConfig() Config {
	return Config{
		Window:      30 * 24 * time.Hour,
		CacheTTL:    24 * time.Hour,
		CallTimeout: 3 * time.Second,
	}
}

// Deviation signal weights. Any single strong anomaly is sufficient to
// flag; the final score is the maximum triggered signal, not a sum.
const (
	scoreUnfamiliarHour     = 0.7
	scoreUnfamiliarIP       = 0.8
	scoreUnfamiliarAgent    = 0.6
	scoreUnfamiliarResource = 0.5
)

// offHoursStart and offHoursEnd bound the late-night band used for the
// off-hours activity flag.
const (
	offHoursStart = 22
	offHoursEnd   = 6
)

// Profiler builds behavioral baselines and scores deviations from them.
type Profiler struct {
	history ActivityReader
	cache   Cache
	config  Config
}

// NewProfiler creates a profiler with the given collaborators.
func NewProfiler(history ActivityReader, cache Cache, cfg Config) *Profiler {
	if cfg.Window <= 0 {
		cfg.Window = DefaultConfig().Window
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultConfig().CacheTTL
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultConfig().CallTimeout
	}
	return &Profiler{history: history, cache: cache, config: cfg}
}

func cacheKey(userID string) string {
	return fmt.Sprintf("profile:%s", userID)
}

// Profile returns the baseline for a principal, using the cached snapshot
// when present and building a fresh one otherwise.
func (p *Profiler) Profile(ctx context.Context, userID string) *Profile {
	if userID == "" {
		return emptyProfile(userID)
	}

	cctx, cancel := context.WithTimeout(ctx, p.config.CallTimeout)
	data, err := p.cache.Get(cctx, cacheKey(userID))
	cancel()
	if err == nil && len(data) > 0 {
		var cached Profile
		if uerr := json.Unmarshal(data, &cached); uerr == nil {
			return &cached
		}
		slog.Warn("discarding undecodable cached profile", "user_id", userID)
	}

	return p.BuildProfile(ctx, userID)
}

// BuildProfile queries the trailing history window, computes the baseline
// aggregates, caches the snapshot, and returns it. Fails soft: on
// collaborator error it returns an all-empty profile rather than
// propagating the error.
func (p *Profiler) BuildProfile(ctx context.Context, userID string) *Profile {
	prof := emptyProfile(userID)
	if userID == "" {
		return prof
	}

	until := time.Now().UTC()
	since := until.Add(-p.config.Window)

	qctx, cancel := context.WithTimeout(ctx, p.config.CallTimeout)
	records, err := p.history.Query(qctx, userID, since, until)
	cancel()
	if err != nil {
		slog.Warn("history query failed, using empty baseline",
			"user_id", userID,
			"error", err,
		)
		return prof
	}
	if len(records) == 0 {
		return prof
	}

	ipCounts := make(map[string]int)
	resourceCounts := make(map[string]int)
	offHours := 0

	for _, r := range records {
		hour := r.Timestamp.UTC().Hour()
		prof.LoginHours[hour] = true
		prof.LoginDays[int(r.Timestamp.UTC().Weekday())] = true
		if r.IPAddress != "" {
			prof.KnownIPs[r.IPAddress] = true
			ipCounts[r.IPAddress]++
		}
		if r.UserAgent != "" {
			prof.KnownAgents[r.UserAgent] = true
		}
		if r.Resource != "" {
			resourceCounts[r.Resource]++
		}
		if hour >= offHoursStart || hour < offHoursEnd {
			offHours++
		}
	}

	// Resources touched more than once count as commonly accessed.
	for resource, count := range resourceCounts {
		if count >= 2 {
			prof.CommonResources[resource] = true
		}
	}

	// IP stability: fraction of activity from the single most-used address.
	top := 0
	for _, count := range ipCounts {
		if count > top {
			top = count
		}
	}
	prof.IPStability = float64(top) / float64(len(records))
	prof.OffHoursActivity = float64(offHours)/float64(len(records)) > 0.3
	prof.SampleCount = len(records)

	p.storeSnapshot(ctx, userID, prof)
	return prof
}

func (p *Profiler) storeSnapshot(ctx context.Context, userID string, prof *Profile) {
	data, err := json.Marshal(prof)
	if err != nil {
		slog.Warn("failed to encode profile snapshot", "user_id", userID, "error", err)
		return
	}

	cctx, cancel := context.WithTimeout(ctx, p.config.CallTimeout)
	defer cancel()
	if err := p.cache.Set(cctx, cacheKey(userID), data, p.config.CacheTTL); err != nil {
		slog.Warn("failed to cache profile snapshot", "user_id", userID, "error", err)
	}
}

// ScoreActivity scores how far an event deviates from the principal's
// baseline. Returns the maximum individual signal score in [0,1] and a
// human-readable reason per triggered signal. A principal with no
// baseline scores (0.0, ["no baseline"]).
func (p *Profiler) ScoreActivity(ctx context.Context, event *schema.ActivityEvent) (float64, []string) {
	prof := p.Profile(ctx, event.UserID)
	if prof.Empty() {
		return 0.0, []string{"no baseline"}
	}

	var score float64
	var reasons []string

	hour := event.Timestamp.UTC().Hour()
	if len(prof.LoginHours) > 0 && !prof.LoginHours[hour] {
		score = max(score, scoreUnfamiliarHour)
		reasons = append(reasons, fmt.Sprintf("activity at unfamiliar hour %02d:00", hour))
	}

	if event.IPAddress != "" && len(prof.KnownIPs) > 0 && !prof.KnownIPs[event.IPAddress] {
		score = max(score, scoreUnfamiliarIP)
		reasons = append(reasons, fmt.Sprintf("unfamiliar source address %s", event.IPAddress))
	}

	if event.UserAgent != "" && len(prof.KnownAgents) > 0 && !prof.KnownAgents[event.UserAgent] {
		score = max(score, scoreUnfamiliarAgent)
		reasons = append(reasons, "unfamiliar user agent")
	}

	if event.Resource != "" && len(prof.CommonResources) > 0 && !prof.CommonResources[event.Resource] {
		score = max(score, scoreUnfamiliarResource)
		reasons = append(reasons, fmt.Sprintf("unfamiliar resource %s", event.Resource))
	}

	return score, reasons
}
