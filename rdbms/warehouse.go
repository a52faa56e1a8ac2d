package rdbms

import (
	"fmt"

	"github.com/relloyd/co2pipe/logger"
	"github.com/relloyd/co2pipe/rdbms/shared"
)

// TableExists checks whether a table exists in the given schema using INFORMATION_SCHEMA.
func TableExists(log logger.Logger, db shared.Connector, st SchemaTable) (bool, error) {
	q := fmt.Sprintf(
		"SELECT EXISTS (SELECT * FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = '%v' AND TABLE_NAME = '%v') AS TABLE_EXISTS",
		st.GetSchema(), st.GetTable())
	rows, err := db.Query(q)
	if err != nil {
		return false, fmt.Errorf("failed to check existence of table %v: %w", st.String(), err)
	}
	defer rows.Close()
	exists := false
	if rows.Next() {
		if err := rows.Scan(&exists); err != nil {
			return false, err
		}
	}
	return exists, rows.Err()
}

// SetTableComment tags a table so its provenance is visible in the warehouse.
func SetTableComment(log logger.Logger, db shared.Connector, st SchemaTable, comment string) error {
	_, err := db.Exec(fmt.Sprintf("COMMENT ON TABLE %v IS '%v'", st.String(), comment))
	return err
}

// ScaleWarehouse resizes the named warehouse.
// When waitForCompletion is set the statement blocks until the resize finishes
// so a bulk load that follows runs at the requested size.
func ScaleWarehouse(log logger.Logger, db shared.Connector, warehouse string, size string, waitForCompletion bool) error {
	sql := fmt.Sprintf("ALTER WAREHOUSE %v SET WAREHOUSE_SIZE = %v", warehouse, size)
	if waitForCompletion {
		sql += " WAIT_FOR_COMPLETION = TRUE"
	}
	if _, err := db.Exec(sql); err != nil {
		return fmt.Errorf("failed to scale warehouse %v to %v: %w", warehouse, size, err)
	}
	log.Info("Warehouse ", warehouse, " scaled to ", size)
	return nil
}

// ScaleUpForBulkLoad scales the warehouse up and returns a restore func for use
// with defer. Scaling failures are performance, not correctness, concerns: they
// are logged as warnings and never abort the surrounding operation.
// The restore func must run on all paths so cost stays bounded.
func ScaleUpForBulkLoad(log logger.Logger, db shared.Connector, warehouse, scaledSize, normalSize string) func() {
	if err := ScaleWarehouse(log, db, warehouse, scaledSize, true); err != nil {
		log.Warn("Failed to scale up warehouse: ", err)
	}
	return func() {
		if err := ScaleWarehouse(log, db, warehouse, normalSize, false); err != nil {
			log.Warn("Failed to scale down warehouse: ", err)
		}
	}
}
