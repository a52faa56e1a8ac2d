package harmonize

import (
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/relloyd/co2pipe/cdc"
	c "github.com/relloyd/co2pipe/constants"
	"github.com/relloyd/co2pipe/logger"
	"github.com/relloyd/co2pipe/rdbms"
	"github.com/relloyd/co2pipe/rdbms/shared"
	"github.com/relloyd/co2pipe/validate"
)

var streamCols = []string{"YEAR", "MONTH", "DAY", "DECIMAL_DATE", "CO2_PPM", "METADATA$ACTION", "METADATA$ISUPDATE", "METADATA$ROW_ID"}

func newTestMerger(t *testing.T) (*Merger, *shared.MockConnection, chan string) {
	log := logger.NewLogger("co2pipe-test", "error", false)
	mock, execSql := shared.NewMockConnectionWithMockTx(log, c.ConnectionTypeSnowflake)
	v := validate.NewValidator()
	v.Now = func() time.Time {
		return time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	}
	m := &Merger{
		Log: log,
		Db:  mock,
		Stream: &cdc.Stream{
			Log:    log,
			Db:     mock,
			Schema: c.DefaultRawSchema,
			Name:   c.DefaultStreamName,
			Table:  rdbms.NewSchemaTable(c.DefaultRawSchema, c.DefaultRawTable),
		},
		Validator:  v,
		Table:      rdbms.NewSchemaTable(c.DefaultHarmonizedSchema, c.DefaultHarmonizedTable),
		SiteId:     c.DefaultSiteId,
		Warehouse:  "CO2_WH",
		ScaledSize: c.DefaultWarehouseSizeScaled,
		NormalSize: c.DefaultWarehouseSizeNormal,
		Now: func() time.Time {
			return time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
		},
	}
	return m, mock, execSql
}

func drainSql(execSql chan string) []string {
	var stmts []string
	for {
		select {
		case s := <-execSql:
			stmts = append(stmts, s)
		default:
			return stmts
		}
	}
}

func TestRunMergesValidAndSkipsInvalid(t *testing.T) {
	m, mock, execSql := newTestMerger(t)
	mock.QueueValue(true) // harmonized table exists.
	mock.QueueValue(true) // stream has pending data.
	mock.QueueRows(streamCols, [][]interface{}{
		{2024, 6, 13, 2024.4508, 421.1, "INSERT", false, "row-1"},
		{2024, 6, 14, 2024.4536, 421.4, "UPDATE", true, "row-2"},
		{2024, 6, 12, 2024.4481, 999.9, "INSERT", false, "row-3"}, // out of band.
	})
	mock.QueueValue(int64(5)) // rowcount before.
	mock.QueueValue(int64(6)) // rowcount after: one insert, one update.
	res, err := m.Run("run-1")
	if err != nil {
		t.Fatal("unexpected error: ", err)
	}
	if res.ValidProcessed != 2 {
		t.Fatal("expected 2 valid records, got ", res.ValidProcessed)
	}
	if res.Inserted != 1 || res.Updated != 1 {
		t.Fatal("expected 1 inserted and 1 updated, got ", res.Inserted, "/", res.Updated)
	}
	if res.SkippedInvalid != 1 {
		t.Fatal("expected 1 invalid record, got ", res.SkippedInvalid)
	}
	stmts := drainSql(execSql)
	var mergeStmt, consumeStmt string
	for _, s := range stmts {
		if strings.HasPrefix(s, "merge into") {
			mergeStmt = s
		}
		if strings.Contains(s, "INSERT INTO RAW_CO2.CO2_DATA_STREAM_CONSUMPTION") {
			consumeStmt = s
		}
	}
	if mergeStmt == "" {
		t.Fatal("expected a merge statement, got: ", stmts)
	}
	for _, frag := range []string{
		"merge into HARMONIZED_CO2.CO2_HARMONIZED T using (select ? as CO2_DATE",
		"on (S.CO2_DATE = T.CO2_DATE)",
		"when matched then update set T.CO2_PPM = S.CO2_PPM",
		"when not matched then insert (CO2_DATE,CO2_PPM,CO2_SITE,YEAR,MONTH,DAY,DECIMAL_DATE,VALIDATION_STATUS,META_UPDATED_AT,META_ROW_ID)",
	} {
		if !strings.Contains(mergeStmt, frag) {
			t.Fatal("merge statement missing ", frag, ": ", mergeStmt)
		}
	}
	// Two valid rows means exactly one union all in the inline USING clause.
	if strings.Count(mergeStmt, "union all select") != 1 {
		t.Fatal("expected one union all for two rows: ", mergeStmt)
	}
	if consumeStmt == "" {
		t.Fatal("expected the stream to be consumed, got: ", stmts)
	}
}

func TestRunEmptyStreamIsNoOp(t *testing.T) {
	m, mock, execSql := newTestMerger(t)
	mock.QueueValue(true)  // table exists.
	mock.QueueValue(false) // stream has no pending data.
	res, err := m.Run("run-2")
	if err != nil {
		t.Fatal("unexpected error: ", err)
	}
	if res != (Result{}) {
		t.Fatal("expected zero result, got ", res)
	}
	for _, s := range drainSql(execSql) {
		if strings.HasPrefix(s, "merge into") || strings.Contains(s, "INSERT INTO RAW_CO2.CO2_DATA_STREAM_CONSUMPTION") {
			t.Fatal("expected no merge or consumption for empty stream: ", s)
		}
	}
}

func TestRunConsumesStreamWhenNothingValid(t *testing.T) {
	m, mock, execSql := newTestMerger(t)
	mock.QueueValue(true)
	mock.QueueValue(true)
	mock.QueueRows(streamCols, [][]interface{}{
		{2049, 1, 1, 2049.0, 421.1, "INSERT", false, "row-1"}, // future date.
	})
	mock.QueueValue(int64(5))
	mock.QueueValue(int64(5))
	res, err := m.Run("run-3")
	if err != nil {
		t.Fatal("unexpected error: ", err)
	}
	if res.ValidProcessed != 0 || res.SkippedInvalid != 1 {
		t.Fatal("unexpected result: ", res)
	}
	stmts := drainSql(execSql)
	var sawMerge, sawConsume bool
	for _, s := range stmts {
		if strings.HasPrefix(s, "merge into") {
			sawMerge = true
		}
		if strings.Contains(s, "INSERT INTO RAW_CO2.CO2_DATA_STREAM_CONSUMPTION") {
			sawConsume = true
		}
	}
	if sawMerge {
		t.Fatal("expected no merge for all-invalid window")
	}
	if !sawConsume {
		t.Fatal("expected stream consumed so invalid events do not replay")
	}
}

func TestRunMergeFailureRollsBack(t *testing.T) {
	m, mock, _ := newTestMerger(t)
	mock.QueueValue(true)
	mock.QueueValue(true)
	mock.QueueRows(streamCols, [][]interface{}{
		{2024, 6, 13, 2024.4508, 421.1, "INSERT", false, "row-1"},
	})
	mock.QueueValue(int64(5))
	mock.QueueErrorFor("merge into", errors.New("merge exploded"))
	res, err := m.Run("run-4")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrMergeFailed) {
		t.Fatal("expected ErrMergeFailed, got ", err)
	}
	if res != (Result{}) {
		t.Fatal("expected zero result on failure, got ", res)
	}
}

func TestRunReadsStreamInsideConsumingTransaction(t *testing.T) {
	m, mock, _ := newTestMerger(t)
	mock.QueueValue(true) // harmonized table exists.
	mock.QueueValue(true) // stream has pending data.
	mock.QueueRows(streamCols, [][]interface{}{
		{2024, 6, 13, 2024.4508, 421.1, "INSERT", false, "row-1"},
	})
	mock.QueueValue(int64(0)) // rowcount before.
	mock.QueueValue(int64(1)) // rowcount after.
	if _, err := m.Run("run-6"); err != nil {
		t.Fatal("unexpected error: ", err)
	}
	// The stream read, the merge and the consuming insert must all run in the
	// one committed transaction. A read outside it would let raw rows landing
	// mid-run be consumed at commit without ever being validated or merged.
	tx := mock.LastTx
	if tx == nil || !tx.Committed {
		t.Fatal("expected a committed transaction")
	}
	var sawRead, sawMerge, sawConsume bool
	for _, s := range tx.Stmts {
		if strings.Contains(s, "FROM RAW_CO2.CO2_DATA_STREAM") && strings.Contains(s, "METADATA$ACTION IN") {
			sawRead = true
		}
		if strings.HasPrefix(s, "merge into") {
			sawMerge = true
		}
		if strings.Contains(s, "INSERT INTO RAW_CO2.CO2_DATA_STREAM_CONSUMPTION") {
			sawConsume = true
		}
	}
	if !sawRead || !sawMerge || !sawConsume {
		t.Fatal("expected read, merge and consumption inside the transaction: ", tx.Stmts)
	}
}

func TestRunTwiceOnUnchangedWindowBuildsSameMerge(t *testing.T) {
	m, mock, execSql := newTestMerger(t)
	window := [][]interface{}{
		{2024, 6, 13, 2024.4508, 421.1, "INSERT", false, "row-1"},
		{2024, 6, 14, 2024.4536, 421.4, "INSERT", false, "row-2"},
	}
	mergeStmt := func(stmts []string) string {
		for _, s := range stmts {
			if strings.HasPrefix(s, "merge into") {
				return s
			}
		}
		return ""
	}
	mock.QueueValue(true)
	mock.QueueValue(true)
	mock.QueueRows(streamCols, window)
	mock.QueueValue(int64(0))
	mock.QueueValue(int64(2))
	if _, err := m.Run("run-7"); err != nil {
		t.Fatal("unexpected error: ", err)
	}
	first := mergeStmt(drainSql(execSql))
	// A replayed, unchanged window (e.g. after a crash before commit) builds
	// the identical merge, so re-running leaves the table contents unchanged.
	mock.QueueValue(true)
	mock.QueueValue(true)
	mock.QueueRows(streamCols, window)
	mock.QueueValue(int64(2))
	mock.QueueValue(int64(2))
	res, err := m.Run("run-8")
	if err != nil {
		t.Fatal("unexpected error: ", err)
	}
	second := mergeStmt(drainSql(execSql))
	if first == "" || first != second {
		t.Fatal("expected identical merge statements across runs:\n", first, "\n", second)
	}
	if res.Inserted != 0 || res.Updated != 2 {
		t.Fatal("expected the second run to update in place, got ", res)
	}
}

func TestRunReportsValidWhenPostMergeCountFails(t *testing.T) {
	m, mock, _ := newTestMerger(t)
	mock.QueueValue(true)
	mock.QueueValue(true)
	mock.QueueRows(streamCols, [][]interface{}{
		{2024, 6, 13, 2024.4508, 421.1, "INSERT", false, "row-1"},
	})
	mock.QueueValue(int64(5)) // rowcount before succeeds.
	// The post-merge rowcount fails after the commit.
	mock.QueueQueryError(errors.New("count timed out"))
	res, err := m.Run("run-10")
	if err != nil {
		t.Fatal("the merge committed, expected no error: ", err)
	}
	if mock.LastTx == nil || !mock.LastTx.Committed {
		t.Fatal("expected the merge transaction to commit")
	}
	if res.ValidProcessed != 1 || res.Inserted != 0 || res.Updated != 0 {
		t.Fatal("expected the valid count without an insert/update split, got ", res)
	}
}

func TestRunCreatesTableWhenMissing(t *testing.T) {
	m, mock, execSql := newTestMerger(t)
	mock.QueueValue(false) // harmonized table missing.
	mock.QueueValue(true)  // probe can report data that a concurrent run already consumed.
	mock.QueueRows(streamCols, [][]interface{}{})
	if _, err := m.Run("run-5"); err != nil {
		t.Fatal("unexpected error: ", err)
	}
	var sawCreate bool
	for _, s := range drainSql(execSql) {
		if strings.Contains(s, "CREATE TABLE HARMONIZED_CO2.CO2_HARMONIZED") {
			sawCreate = true
			for _, col := range []string{"CO2_DATE DATE", "CO2_SITE STRING DEFAULT 'MAUNA_LOA'", "VALIDATION_STATUS STRING", "META_ROW_ID STRING"} {
				if !strings.Contains(s, col) {
					t.Fatal("create statement missing ", col, ": ", s)
				}
			}
		}
	}
	if !sawCreate {
		t.Fatal("expected harmonized table created")
	}
}
