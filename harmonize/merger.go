package harmonize

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/relloyd/co2pipe/cdc"
	h "github.com/relloyd/co2pipe/helper"
	"github.com/relloyd/co2pipe/logger"
	"github.com/relloyd/co2pipe/rdbms"
	"github.com/relloyd/co2pipe/rdbms/shared"
	"github.com/relloyd/co2pipe/validate"
)

// ErrMergeFailed wraps any failure inside the merge transaction. The
// transaction rolls back, the stream window replays and the caller may retry.
var ErrMergeFailed = errors.New("harmonized merge failed")

// Result reports what one merge run did.
type Result struct {
	ValidProcessed int
	Inserted       int64
	Updated        int64
	SkippedInvalid int
}

// Merger consumes a change window from the raw stream, validates it and
// upserts the valid subset into the harmonized table keyed on CO2_DATE.
// The MERGE and the stream-consuming DML commit in one transaction, so a
// window is either fully applied or fully replayed.
type Merger struct {
	Log        logger.Logger `errorTxt:"logger" mandatory:"yes"`
	Db         shared.Connector
	Stream     *cdc.Stream
	Validator  *validate.Validator
	Table      rdbms.SchemaTable // e.g. HARMONIZED_CO2.CO2_HARMONIZED
	SiteId     string
	Warehouse  string
	ScaledSize string
	NormalSize string
	Now        func() time.Time // stamped into META_UPDATED_AT.
}

// mergeKeyCols / mergeOtherCols fix the column order used by the batch
// generator; values added per row must follow keys-then-others.
var (
	mergeKeyCols   = []string{"CO2_DATE"}
	mergeOtherCols = []string{"CO2_PPM", "CO2_SITE", "YEAR", "MONTH", "DAY", "DECIMAL_DATE", "VALIDATION_STATUS", "META_UPDATED_AT", "META_ROW_ID"}
)

// EnsureTable creates the harmonized table if it does not exist.
// Safe to call on every run.
func (m *Merger) EnsureTable() error {
	exists, err := rdbms.TableExists(m.Log, m.Db, m.Table)
	if err != nil {
		return errors.Wrap(err, "failed to check harmonized table existence")
	}
	if exists {
		return nil
	}
	m.Log.Info("Creating harmonized table ", m.Table.String())
	sqlText := fmt.Sprintf(`CREATE TABLE %v (
	CO2_DATE DATE,
	CO2_PPM FLOAT,
	CO2_SITE STRING DEFAULT '%v',
	YEAR NUMBER(4,0),
	MONTH NUMBER(2,0),
	DAY NUMBER(2,0),
	DECIMAL_DATE FLOAT,
	VALIDATION_STATUS STRING,
	META_UPDATED_AT TIMESTAMP,
	META_ROW_ID STRING
)`, m.Table.String(), m.SiteId)
	if _, err := m.Db.Exec(sqlText); err != nil {
		return errors.Wrap(err, fmt.Sprintf("failed to create harmonized table %v", m.Table.String()))
	}
	return nil
}

// Run executes one merge cycle and returns its counts. An empty stream window
// is a no-op success. Any failure before the commit rolls back, returns zero
// counts and wraps ErrMergeFailed. A failure counting rows after the commit
// is only a warning: the counts come back without an insert/update split.
func (m *Merger) Run(runId string) (Result, error) {
	defer rdbms.ScaleUpForBulkLoad(m.Log, m.Db, m.Warehouse, m.ScaledSize, m.NormalSize)()
	if err := m.EnsureTable(); err != nil {
		return Result{}, err
	}
	if err := m.Stream.EnsureConsumptionLog(); err != nil {
		return Result{}, err
	}
	pending, err := m.Stream.HasPendingData()
	if err != nil {
		return Result{}, err
	}
	if !pending { // if nothing landed since the last consumption...
		m.Log.Info("Stream has no pending data - nothing to process")
		return Result{}, nil
	}
	// The stream read and the consuming DML share one transaction, which pins
	// the window: rows landing in the raw table after the transaction opens
	// are not read here and not consumed at commit, they wait for the next run.
	tx, err := m.Db.Begin()
	if err != nil {
		return Result{}, errors.Wrap(ErrMergeFailed, err.Error())
	}
	events, err := m.Stream.ReadEventsWithin(tx)
	if err != nil {
		_ = tx.Rollback()
		return Result{}, err
	}
	if len(events) == 0 {
		_ = tx.Rollback()
		m.Log.Info("Stream is empty - nothing to process")
		return Result{}, nil
	}
	records, counts := m.Validator.Apply(events)
	valid := validate.ValidOnly(records)
	m.Log.Info("Validated ", len(events), " events: ", counts.Valid, " valid, ", counts.Invalid(), " invalid")

	countBefore, err := m.tableRowCount()
	if err != nil {
		_ = tx.Rollback()
		return Result{}, err
	}
	if len(valid) > 0 {
		if err := m.execMerge(tx, valid); err != nil {
			_ = tx.Rollback()
			return Result{}, errors.Wrap(ErrMergeFailed, err.Error())
		}
	}
	// Consume the window even when nothing was valid so invalid events don't
	// replay forever; they are counted and reported instead.
	if err := m.Stream.AdvanceWithin(tx, runId); err != nil {
		_ = tx.Rollback()
		return Result{}, errors.Wrap(ErrMergeFailed, err.Error())
	}
	if err := tx.Commit(); err != nil {
		return Result{}, errors.Wrap(ErrMergeFailed, err.Error())
	}
	countAfter, err := m.tableRowCount()
	if err != nil { // if only the post-commit count failed, the merge still stands...
		m.Log.Warn("Merge committed but the post-merge row count failed: ", err,
			" - reporting ", len(valid), " valid records without an insert/update split")
		return Result{ValidProcessed: len(valid), SkippedInvalid: counts.Invalid()}, nil
	}
	inserted := countAfter - countBefore
	return Result{
		ValidProcessed: len(valid),
		Inserted:       inserted,
		Updated:        int64(len(valid)) - inserted,
		SkippedInvalid: counts.Invalid(),
	}, nil
}

// execMerge builds one set-based MERGE for the whole valid subset and runs it
// in the supplied transaction. Dates in the subset are unique (duplicates were
// downgraded), so the inline USING clause holds at most one row per key.
func (m *Merger) execMerge(tx shared.Transacter, valid []validate.Record) error {
	cfg := &shared.SqlStatementGeneratorConfig{
		Log:             m.Log,
		OutputSchema:    m.Table.GetSchema(),
		OutputTable:     m.Table.GetTable(),
		TargetKeyCols:   h.StringSliceToOrderedMap(mergeKeyCols),
		TargetOtherCols: h.StringSliceToOrderedMap(mergeOtherCols),
	}
	batch, ok := m.Db.GetDmlGenerator().NewMergeGenerator(cfg).(shared.SqlStmtTxtBatcher)
	if !ok {
		return errors.New("merge generator does not support batching")
	}
	batch.InitBatch(len(valid))
	now := m.Now()
	for _, r := range valid {
		values := []interface{}{
			r.Date(),
			r.Co2Ppm,
			m.SiteId,
			r.Year,
			r.Month,
			r.Day,
			r.DecimalDate,
			r.Status,
			now,
			r.RowId,
		}
		if _, err := batch.AddValuesToBatch(values); err != nil {
			return errors.Wrap(err, "failed to add row to merge batch")
		}
	}
	if _, err := tx.Exec(batch.GetStatement(), batch.GetValues()...); err != nil {
		return errors.Wrap(err, "failed to execute merge")
	}
	return nil
}

func (m *Merger) tableRowCount() (int64, error) {
	rows, err := m.Db.Query(fmt.Sprintf("SELECT COUNT(*) FROM %v", m.Table.String()))
	if err != nil {
		return 0, errors.Wrap(err, fmt.Sprintf("failed to count rows in %v", m.Table.String()))
	}
	defer rows.Close()
	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, err
		}
	}
	return n, rows.Err()
}
