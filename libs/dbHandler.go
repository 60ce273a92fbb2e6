package libs

import (
	"github.com/Nithish-ponnusamy/new-k8s/types"
)

// Database access for policy bundles and drift events. The driver is
// selected by configuration: sqlite3 (default) or mysql.

// ================ //
// == Connection == //
// ================ //

func CreateTablesIfNotExist(cfg types.ConfigDB) {
	if cfg.DBDriver == "mysql" {
		if err := CreateTablesMySQL(cfg); err != nil {
			log.Error().Msg(err.Error())
		}
	} else if cfg.DBDriver == "sqlite3" {
		if err := CreateTablesSQLite(cfg); err != nil {
			log.Error().Msg(err.Error())
		}
	}
}

// =================== //
// == Policy Bundle == //
// =================== //

func InsertPolicyBundle(cfg types.ConfigDB, bundle types.PolicyBundle) error {
	if cfg.DBDriver == "mysql" {
		return InsertPolicyBundleMySQL(cfg, bundle)
	} else if cfg.DBDriver == "sqlite3" {
		return InsertPolicyBundleSQLite(cfg, bundle)
	}

	return nil
}

func GetPolicyBundles(cfg types.ConfigDB, namespace string) []types.PolicyBundle {
	results := []types.PolicyBundle{}

	if cfg.DBDriver == "mysql" {
		docs, err := GetPolicyBundlesFromMySQL(cfg, namespace)
		if err != nil {
			return results
		}
		results = docs
	} else if cfg.DBDriver == "sqlite3" {
		docs, err := GetPolicyBundlesFromSQLite(cfg, namespace)
		if err != nil {
			return results
		}
		results = docs
	}

	return results
}

func UpdatePolicyBundleDeployed(cfg types.ConfigDB, bundleID string, deployed bool) error {
	if cfg.DBDriver == "mysql" {
		return UpdatePolicyBundleDeployedMySQL(cfg, bundleID, deployed)
	} else if cfg.DBDriver == "sqlite3" {
		return UpdatePolicyBundleDeployedSQLite(cfg, bundleID, deployed)
	}

	return nil
}

func DeletePolicyBundle(cfg types.ConfigDB, bundleID string) error {
	if cfg.DBDriver == "mysql" {
		return DeletePolicyBundleMySQL(cfg, bundleID)
	} else if cfg.DBDriver == "sqlite3" {
		return DeletePolicyBundleSQLite(cfg, bundleID)
	}

	return nil
}

// ================= //
// == Drift Event == //
// ================= //

func InsertDriftEvent(cfg types.ConfigDB, event types.DriftEvent) error {
	if cfg.DBDriver == "mysql" {
		return InsertDriftEventMySQL(cfg, event)
	} else if cfg.DBDriver == "sqlite3" {
		return InsertDriftEventSQLite(cfg, event)
	}

	return nil
}

func GetDriftEvents(cfg types.ConfigDB, limit int) []types.DriftEvent {
	results := []types.DriftEvent{}

	if cfg.DBDriver == "mysql" {
		docs, err := GetDriftEventsFromMySQL(cfg, limit)
		if err != nil {
			return results
		}
		results = docs
	} else if cfg.DBDriver == "sqlite3" {
		docs, err := GetDriftEventsFromSQLite(cfg, limit)
		if err != nil {
			return results
		}
		results = docs
	}

	return results
}

func UpdateDriftEventState(cfg types.ConfigDB, eventID string, acknowledged, resolved bool) error {
	if cfg.DBDriver == "mysql" {
		return UpdateDriftEventStateMySQL(cfg, eventID, acknowledged, resolved)
	} else if cfg.DBDriver == "sqlite3" {
		return UpdateDriftEventStateSQLite(cfg, eventID, acknowledged, resolved)
	}

	return nil
}
