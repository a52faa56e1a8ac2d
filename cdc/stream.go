package cdc

import (
	"database/sql"
	"fmt"

	"github.com/pkg/errors"
	c "github.com/relloyd/co2pipe/constants"
	"github.com/relloyd/co2pipe/logger"
	"github.com/relloyd/co2pipe/rdbms"
	"github.com/relloyd/co2pipe/rdbms/shared"
)

// StreamEvent is one change-capture row from the warehouse stream: the raw
// measurement columns plus the change metadata the stream attaches.
type StreamEvent struct {
	Year        int
	Month       int
	Day         int
	DecimalDate float64
	Co2Ppm      sql.NullFloat64
	Action      string // INSERT or UPDATE (deletes are filtered out upstream).
	IsUpdate    bool
	RowId       string // stable id for the changed row within this stream window.
}

// Stream wraps a change stream on the raw table. Reading the stream is
// side-effect free; the offset only ever advances when AdvanceWithin runs DML
// against the stream inside a transaction that commits, so events are either
// fully consumed with the caller's writes or replayed on the next run.
// Reads and consumption must share one transaction - see ReadEventsWithin.
type Stream struct {
	Log    logger.Logger
	Db     shared.Connector
	Schema string // schema holding the stream, e.g. RAW_CO2.
	Name   string // stream name, e.g. CO2_DATA_STREAM.
	Table  rdbms.SchemaTable
}

func (s *Stream) qualifiedName() string {
	return fmt.Sprintf("%v.%v", s.Schema, s.Name)
}

func (s *Stream) consumptionLog() string {
	st := rdbms.NewSchemaTable(s.Schema, s.Name)
	return st.AppendSuffix("_CONSUMPTION")
}

// EnsureExists creates the stream on the raw table if it is missing.
// SHOW_INITIAL_ROWS is only set when the caller asks for a bootstrap read of
// pre-existing rows; the steady-state stream starts from its creation point.
func (s *Stream) EnsureExists(showInitialRows bool) error {
	sqlText := fmt.Sprintf(`CREATE STREAM IF NOT EXISTS %v
ON TABLE %v
APPEND_ONLY = FALSE
SHOW_INITIAL_ROWS = %v
COMMENT = 'Stream to capture changes to the CO2 data table'`,
		s.qualifiedName(), s.Table.String(), showInitialRows)
	if _, err := s.Db.Exec(sqlText); err != nil {
		return errors.Wrap(err, fmt.Sprintf("failed to create stream %v", s.qualifiedName()))
	}
	return nil
}

// HasPendingData probes the stream for unconsumed changes. The probe is
// read-only and never advances the offset.
func (s *Stream) HasPendingData() (bool, error) {
	q := fmt.Sprintf("SELECT SYSTEM$STREAM_HAS_DATA('%v')", s.qualifiedName())
	rows, err := s.Db.Query(q)
	if err != nil {
		return false, errors.Wrap(err, fmt.Sprintf("failed to probe stream %v", s.qualifiedName()))
	}
	defer rows.Close()
	pending := false
	if rows.Next() {
		if err := rows.Scan(&pending); err != nil {
			return false, err
		}
	}
	return pending, rows.Err()
}

// ReadEventsWithin selects the stream's pending INSERT and UPDATE events in
// native row order, through the supplied transaction. The stream's contents
// are fixed when the transaction opens, so the rows returned here are exactly
// the rows AdvanceWithin will consume when the same transaction commits; rows
// landing in the table after the transaction opened wait for the next window.
func (s *Stream) ReadEventsWithin(tx shared.Transacter) ([]StreamEvent, error) {
	q := fmt.Sprintf(`SELECT YEAR, MONTH, DAY, DECIMAL_DATE, CO2_PPM,
	METADATA$ACTION, METADATA$ISUPDATE, METADATA$ROW_ID
FROM %v
WHERE METADATA$ACTION IN ('%v', '%v')`,
		s.qualifiedName(), c.StreamActionInsert, c.StreamActionUpdate)
	rows, err := tx.Query(q)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("failed to read stream %v", s.qualifiedName()))
	}
	defer rows.Close()
	var events []StreamEvent
	for rows.Next() {
		var e StreamEvent
		if err := rows.Scan(&e.Year, &e.Month, &e.Day, &e.DecimalDate, &e.Co2Ppm, &e.Action, &e.IsUpdate, &e.RowId); err != nil {
			return nil, errors.Wrap(err, "failed to scan stream event")
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("error iterating stream %v", s.qualifiedName()))
	}
	s.Log.Debug("Read ", len(events), " events from stream ", s.qualifiedName())
	return events, nil
}

// EnsureConsumptionLog creates the audit table that AdvanceWithin writes into.
// One row per consumed event keeps the consuming DML cheap while leaving an
// audit trail of which stream windows fed which runs.
func (s *Stream) EnsureConsumptionLog() error {
	sqlText := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %v (
	RUN_ID STRING,
	STREAM_ROW_ID STRING,
	ACTION STRING,
	CONSUMED_AT TIMESTAMP_NTZ DEFAULT CURRENT_TIMESTAMP()
)`, s.consumptionLog())
	if _, err := s.Db.Exec(sqlText); err != nil {
		return errors.Wrap(err, fmt.Sprintf("failed to create consumption log %v", s.consumptionLog()))
	}
	return nil
}

// AdvanceWithin consumes the stream window pinned by the supplied transaction,
// inserting the window's row ids into the consumption log. Pair it with
// ReadEventsWithin on the same transaction: the rows consumed here are then
// the rows that were read. The offset moves only if the transaction commits;
// on rollback the window replays in full, so events never straddle two
// consumption windows.
func (s *Stream) AdvanceWithin(tx shared.Transacter, runId string) error {
	sqlText := fmt.Sprintf(`INSERT INTO %v (RUN_ID, STREAM_ROW_ID, ACTION)
SELECT '%v', METADATA$ROW_ID, METADATA$ACTION
FROM %v`, s.consumptionLog(), runId, s.qualifiedName())
	if _, err := tx.Exec(sqlText); err != nil {
		return errors.Wrap(err, fmt.Sprintf("failed to advance stream %v", s.qualifiedName()))
	}
	s.Log.Debug("Stream ", s.qualifiedName(), " consumed for run ", runId)
	return nil
}
