package config

import (
	types "github.com/Nithish-ponnusamy/new-k8s/types"
	"github.com/spf13/viper"
)

// ====================== //
// == Global Variables == //
// ====================== //

var CurrentCfg types.Configuration

// default component weights; drift events and runtime behavior carry
// the largest shares
var DefaultRiskWeights = map[string]float64{
	types.ComponentDriftEvents:     0.30,
	types.ComponentRuntimeBehavior: 0.25,
	types.ComponentPolicyCoverage:  0.20,
	types.ComponentConfiguration:   0.15,
	types.ComponentCompliance:      0.10,
}

// =========================== //
// == Configuration Loading == //
// =========================== //

func LoadConfigDB() types.ConfigDB {
	cfgDB := types.ConfigDB{}

	cfgDB.DBDriver = viper.GetString("database.driver")
	cfgDB.DBUser = viper.GetString("database.user")
	cfgDB.DBPass = viper.GetString("database.password")
	cfgDB.DBName = viper.GetString("database.dbname")
	cfgDB.DBHost = viper.GetString("database.host")
	cfgDB.DBPort = viper.GetString("database.port")

	cfgDB.SQLiteDBPath = viper.GetString("database.sqlite-db-path")

	cfgDB.TablePolicyBundle = viper.GetString("database.table-policy-bundle")
	cfgDB.TableDriftEvent = viper.GetString("database.table-drift-event")

	return cfgDB
}

func LoadConfigDriftDetector() types.ConfigDriftDetector {
	cfgDrift := types.ConfigDriftDetector{}

	cfgDrift.QueueSize = viper.GetInt("drift-detector.queue-size")
	cfgDrift.AnalysisWindowHours = viper.GetInt("drift-detector.analysis-window-hours")
	cfgDrift.RepeatThreshold = viper.GetInt("drift-detector.repeat-threshold")
	cfgDrift.CriticalAgeMinutes = viper.GetInt("drift-detector.critical-age-minutes")

	if cfgDrift.QueueSize <= 0 {
		cfgDrift.QueueSize = 1024
	}
	if cfgDrift.AnalysisWindowHours <= 0 {
		cfgDrift.AnalysisWindowHours = 24
	}
	if cfgDrift.RepeatThreshold <= 0 {
		cfgDrift.RepeatThreshold = 5
	}
	if cfgDrift.CriticalAgeMinutes <= 0 {
		cfgDrift.CriticalAgeMinutes = 60
	}

	return cfgDrift
}

func LoadConfigRiskScorer() types.ConfigRiskScorer {
	cfgRisk := types.ConfigRiskScorer{}

	cfgRisk.WindowHours = viper.GetInt("risk-scorer.window-hours")
	cfgRisk.HistoryLimit = viper.GetInt("risk-scorer.history-limit")

	if interval := viper.GetString("risk-scorer.cron-job-time-interval"); interval != "" {
		cfgRisk.CronJobTimeInterval = "@every " + interval
	}

	if cfgRisk.WindowHours <= 0 {
		cfgRisk.WindowHours = 24
	}
	if cfgRisk.HistoryLimit <= 0 {
		cfgRisk.HistoryLimit = 1000
	}

	weights := map[string]float64{}
	for component := range DefaultRiskWeights {
		weights[component] = viper.GetFloat64("risk-scorer.weights." + component)
	}
	cfgRisk.Weights = weights

	return cfgRisk
}

func LoadConfigEnforcer() types.ConfigEnforcer {
	cfgEnforcer := types.ConfigEnforcer{}

	cfgEnforcer.MaxRetries = viper.GetInt("enforcer.max-retries")
	cfgEnforcer.BackoffBaseMsec = viper.GetInt("enforcer.backoff-base-msec")
	cfgEnforcer.TimeoutSec = viper.GetInt("enforcer.timeout-sec")

	if cfgEnforcer.MaxRetries <= 0 {
		cfgEnforcer.MaxRetries = 5
	}
	if cfgEnforcer.BackoffBaseMsec <= 0 {
		cfgEnforcer.BackoffBaseMsec = 500
	}
	if cfgEnforcer.TimeoutSec <= 0 {
		cfgEnforcer.TimeoutSec = 30
	}

	cfgEnforcer.DNSNamespace = viper.GetString("enforcer.dns-namespace")
	if cfgEnforcer.DNSNamespace == "" {
		cfgEnforcer.DNSNamespace = "kube-system"
	}

	cfgEnforcer.DNSSelector = viper.GetStringMapString("enforcer.dns-selector")
	if len(cfgEnforcer.DNSSelector) == 0 {
		cfgEnforcer.DNSSelector = map[string]string{"k8s-app": "kube-dns"}
	}

	return cfgEnforcer
}

func LoadConfigFeedConsumer() types.ConfigFeedConsumer {
	cfgFeed := types.ConfigFeedConsumer{}

	cfgFeed.NumberOfConsumers = viper.GetInt("feed-consumer.kafka.number-of-consumers")
	cfgFeed.Topics = viper.GetStringSlice("feed-consumer.kafka.topics")

	return cfgFeed
}

func LoadDefaultConfig() {
	CurrentCfg = types.Configuration{}

	CurrentCfg.ConfigName = "default"
	CurrentCfg.Status = 1 // 1: active 0: inactive

	CurrentCfg.ClusterName = viper.GetString("cluster-name")
	if CurrentCfg.ClusterName == "" {
		CurrentCfg.ClusterName = "default"
	}

	CurrentCfg.ConfigDB = LoadConfigDB()
	CurrentCfg.ConfigDrift = LoadConfigDriftDetector()
	CurrentCfg.ConfigRisk = LoadConfigRiskScorer()
	CurrentCfg.ConfigEnforcer = LoadConfigEnforcer()
	CurrentCfg.ConfigFeedConsumer = LoadConfigFeedConsumer()
}

// ============================ //
// == Get Configuration Info == //
// ============================ //

func GetCurrentCfg() types.Configuration {
	return CurrentCfg
}

func GetCfgDB() types.ConfigDB {
	return CurrentCfg.ConfigDB
}

func GetCfgDrift() types.ConfigDriftDetector {
	return CurrentCfg.ConfigDrift
}

func GetCfgRisk() types.ConfigRiskScorer {
	return CurrentCfg.ConfigRisk
}

func GetCfgEnforcer() types.ConfigEnforcer {
	return CurrentCfg.ConfigEnforcer
}

func GetCfgClusterName() string {
	return CurrentCfg.ClusterName
}

// GetCfgRiskWeights returns the configured component weights when they
// are valid (sum to 1), the defaults otherwise.
func GetCfgRiskWeights() map[string]float64 {
	weights := CurrentCfg.ConfigRisk.Weights

	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if sum < 0.999 || sum > 1.001 {
		return DefaultRiskWeights
	}

	return weights
}
