package types

// ConfigDB ...
type ConfigDB struct {
	DBDriver string `json:"db_driver,omitempty"`
	DBHost   string `json:"db_host,omitempty"`
	DBPort   string `json:"db_port,omitempty"`
	DBUser   string `json:"db_user,omitempty"`
	DBPass   string `json:"db_pass,omitempty"`
	DBName   string `json:"db_name,omitempty"`

	SQLiteDBPath string `json:"sqlite_db_path,omitempty"`

	TablePolicyBundle string `json:"table_policy_bundle,omitempty"`
	TableDriftEvent   string `json:"table_drift_event,omitempty"`
}

// ConfigDriftDetector ...
type ConfigDriftDetector struct {
	QueueSize int `json:"queue_size,omitempty"`

	AnalysisWindowHours int `json:"analysis_window_hours,omitempty"`
	RepeatThreshold     int `json:"repeat_threshold,omitempty"`
	CriticalAgeMinutes  int `json:"critical_age_minutes,omitempty"`
}

// ConfigRiskScorer ...
type ConfigRiskScorer struct {
	Weights map[string]float64 `json:"weights,omitempty"`

	WindowHours  int `json:"window_hours,omitempty"`
	HistoryLimit int `json:"history_limit,omitempty"`

	CronJobTimeInterval string `json:"cronjob_time_interval,omitempty"`
}

// ConfigEnforcer ...
type ConfigEnforcer struct {
	MaxRetries      int `json:"max_retries,omitempty"`
	BackoffBaseMsec int `json:"backoff_base_msec,omitempty"`
	TimeoutSec      int `json:"timeout_sec,omitempty"`

	DNSNamespace string            `json:"dns_namespace,omitempty"`
	DNSSelector  map[string]string `json:"dns_selector,omitempty"`
}

// ConfigFeedConsumer ...
type ConfigFeedConsumer struct {
	NumberOfConsumers int      `json:"number_of_consumers,omitempty"`
	Topics            []string `json:"topics,omitempty"`
}

// Configuration ...
type Configuration struct {
	ConfigName string `json:"config_name,omitempty"`
	Status     int    `json:"status,omitempty"`

	ClusterName string `json:"cluster_name,omitempty"`

	ConfigDB           ConfigDB            `json:"config_db,omitempty"`
	ConfigDrift        ConfigDriftDetector `json:"config_drift,omitempty"`
	ConfigRisk         ConfigRiskScorer    `json:"config_risk,omitempty"`
	ConfigEnforcer     ConfigEnforcer      `json:"config_enforcer,omitempty"`
	ConfigFeedConsumer ConfigFeedConsumer  `json:"config_feed_consumer,omitempty"`
}
