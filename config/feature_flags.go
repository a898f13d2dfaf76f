package config

import (
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
)

// FeatureFlags manages feature toggles with gradual rollout. Users are
// assigned to rollout buckets by consistent hashing, so a user stays in
// or out of a feature across restarts.
type FeatureFlags struct {
	mu sync.RWMutex

	features map[string]*Feature

	// Per-user overrides, for testing and support.
	userOverrides map[string]map[string]bool
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// RolloutPercent is the rollout percentage (0-100).
	RolloutPercent int
}

// Predefined feature flag names.
const (
	// === Background jobs ===
	FeatureSyncSweep         = "jobs.sync_sweep"         // Periodic ledger sync
	FeatureDailyRollover     = "jobs.daily_rollover"     // Goal archiving + streak expiry
	FeatureLeaderboardWarmup = "jobs.leaderboard_warmup" // Cohort cache warming

	// === Engine features ===
	FeatureLiveFeeds     = "engine.live_feeds"      // Progress subscription feeds
	FeatureDailyGoals    = "engine.daily_goals"     // Daily goal tracking
	FeatureStreakGrace   = "engine.streak_grace"    // Grace window before streak loss
	FeatureBadgeXPReward = "engine.badge_xp_reward" // XP bonus on badge award

	// === Experimental ===
	FeatureAIChallenges = "experimental.ai_challenges" // AI-generated challenges
)

// LoadFeatureFlags loads feature flags with environment overrides.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:      make(map[string]*Feature),
		userOverrides: make(map[string]map[string]bool),
	}

	ff.initializeDefaults()
	ff.loadFromEnvironment()

	return ff
}

func (ff *FeatureFlags) initializeDefaults() {
	ff.features[FeatureSyncSweep] = &Feature{
		Name:           FeatureSyncSweep,
		Description:    "Periodic synchronization of all ledgers",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureDailyRollover] = &Feature{
		Name:           FeatureDailyRollover,
		Description:    "Daily goal archiving and streak expiry",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureLeaderboardWarmup] = &Feature{
		Name:           FeatureLeaderboardWarmup,
		Description:    "Background cohort cache warming",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureLiveFeeds] = &Feature{
		Name:           FeatureLiveFeeds,
		Description:    "Live progress subscription feeds",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureDailyGoals] = &Feature{
		Name:           FeatureDailyGoals,
		Description:    "Daily goal tracking",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureStreakGrace] = &Feature{
		Name:           FeatureStreakGrace,
		Description:    "Grace window before a streak is lost",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureBadgeXPReward] = &Feature{
		Name:           FeatureBadgeXPReward,
		Description:    "Award bonus XP when a badge is earned",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureAIChallenges] = &Feature{
		Name:           FeatureAIChallenges,
		Description:    "AI-generated quiz challenges",
		Enabled:        false, // Phase 2
		RolloutPercent: 0,
	}
}

// loadFromEnvironment loads feature flag overrides from env vars.
// Format: FEATURE_<NAME>=true|false|<percent>
// Example: FEATURE_JOBS_SYNC_SWEEP=false
// Example: FEATURE_EXPERIMENTAL_AI_CHALLENGES=25 (25% rollout)
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		val := os.Getenv(featureNameToEnvKey(name))
		if val == "" {
			continue
		}

		if b, err := strconv.ParseBool(val); err == nil {
			feature.Enabled = b
			if b {
				feature.RolloutPercent = 100
			} else {
				feature.RolloutPercent = 0
			}
			continue
		}

		if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
			feature.Enabled = p > 0
			feature.RolloutPercent = p
		}
	}
}

// featureNameToEnvKey converts a feature name to its env variable key.
// "jobs.sync_sweep" -> "FEATURE_JOBS_SYNC_SWEEP"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks if a feature is enabled for the given user.
// An empty userID checks the global toggle only.
func (ff *FeatureFlags) IsEnabled(featureName, userID string) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	if userID != "" {
		if overrides, ok := ff.userOverrides[userID]; ok {
			if enabled, ok := overrides[featureName]; ok {
				return enabled
			}
		}
	}

	feature, ok := ff.features[featureName]
	if !ok || !feature.Enabled {
		return false
	}

	if feature.RolloutPercent < 100 && userID != "" {
		return isInRollout(userID, featureName, feature.RolloutPercent)
	}

	return feature.RolloutPercent > 0
}

// isInRollout assigns the user to a stable 0-99 bucket per feature.
func isInRollout(userID, featureName string, percent int) bool {
	h := fnv.New32a()
	h.Write([]byte(featureName))
	h.Write([]byte(userID))
	return int(h.Sum32()%100) < percent
}

// SetUserOverride sets a feature override for a specific user.
func (ff *FeatureFlags) SetUserOverride(userID, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if _, ok := ff.userOverrides[userID]; !ok {
		ff.userOverrides[userID] = make(map[string]bool)
	}
	ff.userOverrides[userID][featureName] = enabled
}

// ClearUserOverrides removes all overrides for a user.
func (ff *FeatureFlags) ClearUserOverrides(userID string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.userOverrides, userID)
}

// SetRolloutPercent updates the rollout percentage for a feature.
func (ff *FeatureFlags) SetRolloutPercent(featureName string, percent int) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}
	if percent < 0 || percent > 100 {
		return ErrInvalidRolloutPercent
	}

	feature.RolloutPercent = percent
	feature.Enabled = percent > 0
	return nil
}

// AllFeatures returns a copy of every feature configuration.
func (ff *FeatureFlags) AllFeatures() map[string]*Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make(map[string]*Feature, len(ff.features))
	for name, feature := range ff.features {
		copied := *feature
		result[name] = &copied
	}
	return result
}

// --- Errors ---

var (
	ErrFeatureNotFound       = &FeatureFlagError{Message: "feature not found"}
	ErrInvalidRolloutPercent = &FeatureFlagError{Message: "rollout percent must be 0-100"}
)

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
