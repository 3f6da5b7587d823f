package config

import (
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// FeatureFlags manages command and ingestion toggles.
// Each flag can be switched off with FEATURE_<NAME>=false without a redeploy
// of the command surface, e.g. to pause live ingestion while a backfill runs.
type FeatureFlags struct {
	mu       sync.RWMutex
	features map[string]*Feature
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool
}

// Predefined feature flag names.
const (
	// === Ingestion ===
	FeatureIngestLive     = "ingest.live"     // Score result posts as they arrive
	FeatureIngestBackfill = "ingest.backfill" // !backfill_wordle
	FeatureIngestReplay   = "ingest.replay"   // !log_by_id

	// === Presentation ===
	FeatureLeaderboardEmbed = "leaderboard.embed" // Rich embed instead of plain text
	FeatureGreeting         = "greeting.hello"    // !hello

	// === Operations ===
	FeatureLeaderboardAPI = "leaderboard.api" // GET /leaderboard on the HTTP server
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features: make(map[string]*Feature),
	}

	ff.initializeDefaults()
	ff.loadFromEnvironment()

	return ff
}

func (ff *FeatureFlags) initializeDefaults() {
	defaults := []Feature{
		{Name: FeatureIngestLive, Description: "Ingest Wordle App posts in real time", Enabled: true},
		{Name: FeatureIngestBackfill, Description: "Allow administrators to rescan channel history", Enabled: true},
		{Name: FeatureIngestReplay, Description: "Allow administrators to log a single message by ID", Enabled: true},
		{Name: FeatureLeaderboardEmbed, Description: "Render the leaderboard as an embed", Enabled: true},
		{Name: FeatureGreeting, Description: "Reply to the hello command", Enabled: true},
		{Name: FeatureLeaderboardAPI, Description: "Serve the leaderboard as JSON over HTTP", Enabled: false},
	}
	for i := range defaults {
		f := defaults[i]
		ff.features[f.Name] = &f
	}
}

// loadFromEnvironment loads feature flag overrides from env vars.
// Format: FEATURE_<NAME>=true|false
// Example: FEATURE_INGEST_LIVE=false
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		if val := os.Getenv(featureNameToEnvKey(name)); val != "" {
			if b, err := strconv.ParseBool(val); err == nil {
				feature.Enabled = b
			}
		}
	}
}

// featureNameToEnvKey converts feature name to environment variable key.
// "ingest.live" -> "FEATURE_INGEST_LIVE"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled reports whether a feature is enabled. Unknown names are disabled.
// A nil receiver treats every feature as enabled.
func (ff *FeatureFlags) IsEnabled(featureName string) bool {
	if ff == nil {
		return true
	}

	ff.mu.RLock()
	defer ff.mu.RUnlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return false
	}
	return feature.Enabled
}

// SetEnabled switches a feature at runtime.
func (ff *FeatureFlags) SetEnabled(featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if feature, ok := ff.features[featureName]; ok {
		feature.Enabled = enabled
	}
}

// List returns a snapshot of all flags sorted by name.
func (ff *FeatureFlags) List() []Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	out := make([]Feature, 0, len(ff.features))
	for _, f := range ff.features {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
