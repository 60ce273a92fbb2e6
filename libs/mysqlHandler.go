package libs

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Nithish-ponnusamy/new-k8s/types"

	_ "github.com/go-sql-driver/mysql"
)

const TablePolicyBundleMySQL_TableName = "policy_bundle"
const TableDriftEventMySQL_TableName = "drift_event"

func bundleTableMySQL(cfg types.ConfigDB) string {
	if cfg.TablePolicyBundle != "" {
		return cfg.TablePolicyBundle
	}

	return TablePolicyBundleMySQL_TableName
}

func eventTableMySQL(cfg types.ConfigDB) string {
	if cfg.TableDriftEvent != "" {
		return cfg.TableDriftEvent
	}

	return TableDriftEventMySQL_TableName
}

// ================ //
// == Connection == //
// ================ //

var MockSql sqlmock.Sqlmock = nil
var MockDB *sql.DB = nil

func NewMock() (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		log.Error().Msgf("an error '%s' was not expected when opening a stub database connection", err)
	}

	MockSql = mock
	MockDB = db

	return db, mock
}

func waitForDB(db *sql.DB) {
	for {
		err := db.Ping()
		if err != nil {
			time.Sleep(time.Second * 1)
			log.Error().Msgf("db.Ping() failed. Will retry. err=%s", err.Error())
		} else {
			break
		}
	}
}

func connectMySQL(cfg types.ConfigDB) (db *sql.DB) {
	if MockDB != nil {
		return MockDB
	}

	dbconn := cfg.DBUser + ":" + cfg.DBPass + "@tcp(" + cfg.DBHost + ":" + cfg.DBPort + ")/" + cfg.DBName
	db, err := sql.Open(cfg.DBDriver, dbconn)
	for err != nil {
		log.Error().Msgf("mysql driver:%s, user:%s, host:%s, port:%s, dbname:%s conn-error:%s",
			cfg.DBDriver, cfg.DBUser, cfg.DBHost, cfg.DBPort, cfg.DBName, err.Error())
		time.Sleep(time.Second * 1)
		db, err = sql.Open(cfg.DBDriver, dbconn)
	}

	db.SetMaxIdleConns(0)

	waitForDB(db)

	return db
}

// ============ //
// == Tables == //
// ============ //

func CreateTablesMySQL(cfg types.ConfigDB) error {
	db := connectMySQL(cfg)
	defer db.Close()

	bundleStmt := "CREATE TABLE IF NOT EXISTS `" + bundleTableMySQL(cfg) + "` (" +
		"`id` varchar(50) NOT NULL," +
		"`name` varchar(100) DEFAULT NULL," +
		"`namespace` varchar(100) DEFAULT NULL," +
		"`intent` JSON DEFAULT NULL," +
		"`spec` JSON DEFAULT NULL," +
		"`createdTime` int DEFAULT NULL," +
		"`deployed` int DEFAULT 0," +
		"PRIMARY KEY (`id`)" +
		");"

	if _, err := db.Exec(bundleStmt); err != nil {
		return err
	}

	eventStmt := "CREATE TABLE IF NOT EXISTS `" + eventTableMySQL(cfg) + "` (" +
		"`id` varchar(50) NOT NULL," +
		"`timestamp` int DEFAULT NULL," +
		"`eventType` varchar(50) DEFAULT NULL," +
		"`sourcePod` varchar(100) DEFAULT NULL," +
		"`destinationPod` varchar(100) DEFAULT NULL," +
		"`severity` varchar(20) DEFAULT NULL," +
		"`action` varchar(20) DEFAULT NULL," +
		"`details` text DEFAULT NULL," +
		"`acknowledged` int DEFAULT 0," +
		"`resolved` int DEFAULT 0," +
		"PRIMARY KEY (`id`)" +
		");"

	if _, err := db.Exec(eventStmt); err != nil {
		return err
	}

	return nil
}

// =================== //
// == Policy Bundle == //
// =================== //

func InsertPolicyBundleMySQL(cfg types.ConfigDB, bundle types.PolicyBundle) error {
	db := connectMySQL(cfg)
	defer db.Close()

	intent, err := json.Marshal(&bundle.Intent)
	if err != nil {
		return err
	}

	spec, err := json.Marshal(&bundle.Rules)
	if err != nil {
		return err
	}

	stmt, err := db.Prepare("INSERT INTO " + bundleTableMySQL(cfg) +
		"(id,name,namespace,intent,spec,createdTime,deployed) values(?,?,?,?,?,?,?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	deployed := 0
	if bundle.Deployed {
		deployed = 1
	}

	_, err = stmt.Exec(bundle.ID, bundle.Name, bundle.Namespace, intent, spec,
		bundle.CreatedAt.Unix(), deployed)

	return err
}

func GetPolicyBundlesFromMySQL(cfg types.ConfigDB, namespace string) ([]types.PolicyBundle, error) {
	db := connectMySQL(cfg)
	defer db.Close()

	bundles := []types.PolicyBundle{}
	var results *sql.Rows
	var err error

	query := "SELECT id,name,namespace,intent,spec,createdTime,deployed FROM " + bundleTableMySQL(cfg)
	if namespace != "" {
		query = query + " WHERE namespace = ? "
		results, err = db.Query(query, namespace)
	} else {
		results, err = db.Query(query)
	}

	if err != nil {
		log.Error().Msg(err.Error())
		return nil, err
	}
	defer results.Close()

	for results.Next() {
		bundle := types.PolicyBundle{}

		var intent, spec []byte
		var createdTime int64
		var deployed int

		if err := results.Scan(
			&bundle.ID,
			&bundle.Name,
			&bundle.Namespace,
			&intent,
			&spec,
			&createdTime,
			&deployed,
		); err != nil {
			return nil, err
		}

		if err := json.Unmarshal(intent, &bundle.Intent); err != nil {
			return nil, err
		}

		if err := json.Unmarshal(spec, &bundle.Rules); err != nil {
			return nil, err
		}

		bundle.CreatedAt = time.Unix(createdTime, 0).UTC()
		bundle.Deployed = deployed == 1

		bundles = append(bundles, bundle)
	}

	return bundles, nil
}

func UpdatePolicyBundleDeployedMySQL(cfg types.ConfigDB, bundleID string, deployed bool) error {
	db := connectMySQL(cfg)
	defer db.Close()

	stmt, err := db.Prepare("UPDATE " + bundleTableMySQL(cfg) + " SET deployed=? WHERE id=?")
	if err != nil {
		return err
	}
	defer stmt.Close()

	val := 0
	if deployed {
		val = 1
	}

	_, err = stmt.Exec(val, bundleID)

	return err
}

func DeletePolicyBundleMySQL(cfg types.ConfigDB, bundleID string) error {
	db := connectMySQL(cfg)
	defer db.Close()

	stmt, err := db.Prepare("DELETE FROM " + bundleTableMySQL(cfg) + " WHERE id=?")
	if err != nil {
		return err
	}
	defer stmt.Close()

	_, err = stmt.Exec(bundleID)

	return err
}

// ================= //
// == Drift Event == //
// ================= //

func InsertDriftEventMySQL(cfg types.ConfigDB, event types.DriftEvent) error {
	db := connectMySQL(cfg)
	defer db.Close()

	stmt, err := db.Prepare("INSERT INTO " + eventTableMySQL(cfg) +
		"(id,timestamp,eventType,sourcePod,destinationPod,severity,action,details,acknowledged,resolved) values(?,?,?,?,?,?,?,?,?,?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	acknowledged := 0
	if event.Acknowledged {
		acknowledged = 1
	}

	resolved := 0
	if event.Resolved {
		resolved = 1
	}

	_, err = stmt.Exec(event.ID, event.Timestamp.Unix(), event.EventType,
		event.SourcePod, event.DestinationPod, event.Severity, event.Action,
		event.Details, acknowledged, resolved)

	return err
}

func GetDriftEventsFromMySQL(cfg types.ConfigDB, limit int) ([]types.DriftEvent, error) {
	db := connectMySQL(cfg)
	defer db.Close()

	events := []types.DriftEvent{}
	var results *sql.Rows
	var err error

	query := "SELECT id,timestamp,eventType,sourcePod,destinationPod,severity,action,details,acknowledged,resolved FROM " +
		eventTableMySQL(cfg) + " ORDER BY timestamp DESC"
	if limit > 0 {
		query = query + " LIMIT ?"
		results, err = db.Query(query, limit)
	} else {
		results, err = db.Query(query)
	}

	if err != nil {
		log.Error().Msg(err.Error())
		return nil, err
	}
	defer results.Close()

	for results.Next() {
		event := types.DriftEvent{}

		var timestamp int64
		var acknowledged, resolved int

		if err := results.Scan(
			&event.ID,
			&timestamp,
			&event.EventType,
			&event.SourcePod,
			&event.DestinationPod,
			&event.Severity,
			&event.Action,
			&event.Details,
			&acknowledged,
			&resolved,
		); err != nil {
			return nil, err
		}

		event.Timestamp = time.Unix(timestamp, 0).UTC()
		event.Acknowledged = acknowledged == 1
		event.Resolved = resolved == 1

		events = append(events, event)
	}

	return events, nil
}

func UpdateDriftEventStateMySQL(cfg types.ConfigDB, eventID string, acknowledged, resolved bool) error {
	db := connectMySQL(cfg)
	defer db.Close()

	stmt, err := db.Prepare("UPDATE " + eventTableMySQL(cfg) + " SET acknowledged=?,resolved=? WHERE id=?")
	if err != nil {
		return err
	}
	defer stmt.Close()

	ackVal := 0
	if acknowledged {
		ackVal = 1
	}

	resVal := 0
	if resolved {
		resVal = 1
	}

	_, err = stmt.Exec(ackVal, resVal, eventID)

	return err
}
