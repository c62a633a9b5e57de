package rqproc

import (
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	sqlx "github.com/jmoiron/sqlx"
)

// The selection-mask store is a versioned repository of named boolean cuts,
// addressed by dataset identifier and cut name. Masks are read-only from this
// side: the highest stored version wins.

func ConnectToDatabase(user string, pass string, host string, dbname string) (*sqlx.DB, error) {
	port := "3306"
	dbURI := fmt.Sprintf("%s:%s@(%s:%s)/%s?parseTime=true", user, pass, host, port, dbname)
	db, err := sqlx.Connect("mysql", dbURI)
	return db, err
}

type cutEntry struct {
	EventIndex int  `db:"EventIndex"`
	Passes     bool `db:"Passes"`
}

// LoadCut fetches the latest version of a named cut as a boolean vector
// aligned index-for-index with the RQ table it was derived from.
func LoadCut(db *sqlx.DB, datasetID string, cutName string) ([]bool, error) {
	var version sql.NullInt64
	err := db.Get(&version,
		"SELECT MAX(Version) FROM CutVersions WHERE DatasetID = ? AND CutName = ?",
		datasetID, cutName)
	if err != nil {
		return nil, fmt.Errorf("error querying cut versions: %w", err)
	}
	if !version.Valid {
		return nil, fmt.Errorf("no versions of cut %q for dataset %q", cutName, datasetID)
	}

	if configuration.Verbosity > 0 {
		logInfo(fmt.Sprintf("Loading cut %q v%d for dataset %q", cutName, version.Int64, datasetID), "cuts")
	}

	rows, err := db.Queryx(
		"SELECT EventIndex, Passes FROM CutData WHERE DatasetID = ? AND CutName = ? AND Version = ? ORDER BY EventIndex",
		datasetID, cutName, version.Int64)
	if err != nil {
		return nil, fmt.Errorf("error querying cut data: %w", err)
	}
	defer rows.Close()

	var mask []bool
	for rows.Next() {
		result := cutEntry{}
		if err := rows.StructScan(&result); err != nil {
			return nil, fmt.Errorf("error scanning DB row: %w", err)
		}
		if result.EventIndex != len(mask) {
			return nil, fmt.Errorf("cut %q has a gap at event index %d", cutName, len(mask))
		}
		mask = append(mask, result.Passes)
	}
	return mask, rows.Err()
}
