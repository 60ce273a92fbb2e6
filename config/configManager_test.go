package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestLoadDefaultConfig(t *testing.T) {
	viper.Reset()

	viper.Set("database.driver", "sqlite3")
	viper.Set("database.sqlite-db-path", "./engine.db")
	viper.Set("database.table-policy-bundle", "policy_bundle")
	viper.Set("database.table-drift-event", "drift_event")
	viper.Set("drift-detector.queue-size", 2048)
	viper.Set("risk-scorer.cron-job-time-interval", "5m0s")

	LoadDefaultConfig()

	assert.Equal(t, "default", CurrentCfg.ConfigName)
	assert.Equal(t, "sqlite3", GetCfgDB().DBDriver)
	assert.Equal(t, "policy_bundle", GetCfgDB().TablePolicyBundle)
	assert.Equal(t, 2048, GetCfgDrift().QueueSize)
	assert.Equal(t, "@every 5m0s", GetCfgRisk().CronJobTimeInterval)
}

func TestLoadDriftDetectorDefaults(t *testing.T) {
	viper.Reset()

	cfgDrift := LoadConfigDriftDetector()

	assert.Equal(t, 1024, cfgDrift.QueueSize)
	assert.Equal(t, 24, cfgDrift.AnalysisWindowHours)
	assert.Equal(t, 5, cfgDrift.RepeatThreshold)
	assert.Equal(t, 60, cfgDrift.CriticalAgeMinutes)
}

func TestLoadRiskScorerDefaults(t *testing.T) {
	viper.Reset()

	cfgRisk := LoadConfigRiskScorer()

	// unset interval stays empty so the scorer default applies
	assert.Equal(t, "", cfgRisk.CronJobTimeInterval)
	assert.Equal(t, 24, cfgRisk.WindowHours)
	assert.Equal(t, 1000, cfgRisk.HistoryLimit)
}

func TestRiskWeightsFallback(t *testing.T) {
	viper.Reset()

	// not configured at all: every weight reads as zero, sum != 1
	LoadDefaultConfig()
	weights := GetCfgRiskWeights()
	assert.Equal(t, DefaultRiskWeights, weights)

	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 0.0001)
}

func TestRiskWeightsConfigured(t *testing.T) {
	viper.Reset()

	viper.Set("risk-scorer.weights.drift_events", 0.4)
	viper.Set("risk-scorer.weights.runtime_behavior", 0.3)
	viper.Set("risk-scorer.weights.policy_coverage", 0.1)
	viper.Set("risk-scorer.weights.configuration", 0.1)
	viper.Set("risk-scorer.weights.compliance", 0.1)

	LoadDefaultConfig()

	weights := GetCfgRiskWeights()
	assert.Equal(t, 0.4, weights["drift_events"])
}
