package ingest

import (
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	c "github.com/relloyd/co2pipe/constants"
	"github.com/relloyd/co2pipe/logger"
	"github.com/relloyd/co2pipe/rdbms"
	"github.com/relloyd/co2pipe/rdbms/shared"
)

func newTestIngestor(t *testing.T) (*Ingestor, *shared.MockConnection, chan string) {
	log := logger.NewLogger("co2pipe-test", "error", false)
	mock, execSql := shared.NewMockConnectionWithMockTx(log, c.ConnectionTypeSnowflake)
	i := &Ingestor{
		Log:       log,
		Db:        mock,
		RawTable:  rdbms.NewSchemaTable(c.DefaultRawSchema, c.DefaultRawTable),
		StageName: c.DefaultStageName,
	}
	return i, mock, execSql
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

func TestEnsureRawTableCreatesWhenMissing(t *testing.T) {
	i, mock, execSql := newTestIngestor(t)
	mock.QueueValue(false) // table does not exist.
	if err := i.EnsureRawTable(); err != nil {
		t.Fatal("unexpected error: ", err)
	}
	stmts := drainSql(execSql)
	var sawCreate, sawComment bool
	for _, s := range stmts {
		if strings.Contains(s, "CREATE TABLE RAW_CO2.CO2_DATA") {
			sawCreate = true
			for _, col := range []string{"YEAR NUMBER(4,0)", "MONTH NUMBER(2,0)", "DAY NUMBER(2,0)", "DECIMAL_DATE FLOAT", "CO2_PPM FLOAT"} {
				if !strings.Contains(s, col) {
					t.Fatal("create statement missing column ", col, ": ", s)
				}
			}
		}
		if strings.Contains(s, "COMMENT ON TABLE RAW_CO2.CO2_DATA") {
			sawComment = true
		}
	}
	if !sawCreate {
		t.Fatal("expected CREATE TABLE, got: ", stmts)
	}
	if !sawComment {
		t.Fatal("expected COMMENT ON TABLE, got: ", stmts)
	}
}

func TestEnsureRawTableSkipsCreateWhenPresent(t *testing.T) {
	i, mock, execSql := newTestIngestor(t)
	mock.QueueValue(true) // table exists.
	if err := i.EnsureRawTable(); err != nil {
		t.Fatal("unexpected error: ", err)
	}
	for _, s := range drainSql(execSql) {
		if strings.Contains(s, "CREATE TABLE") {
			t.Fatal("unexpected CREATE TABLE: ", s)
		}
	}
}

func TestLoadYearBuildsCopyStatement(t *testing.T) {
	i, _, execSql := newTestIngestor(t)
	if _, err := i.LoadYear(2024); err != nil {
		t.Fatal("unexpected error: ", err)
	}
	s := <-execSql
	for _, frag := range []string{
		"COPY INTO RAW_CO2.CO2_DATA (YEAR, MONTH, DAY, DECIMAL_DATE, CO2_PPM)",
		"FROM @EXTERNAL.NOAA_CO2_STAGE/2024/",
		"SKIP_HEADER = 1",
		`PATTERN = '.*co2_daily_mlo\.csv'`,
		"ON_ERROR = CONTINUE",
	} {
		if !strings.Contains(s, frag) {
			t.Fatal("copy statement missing ", frag, ": ", s)
		}
	}
}

func TestLoadYearsContinuesPastFailedYear(t *testing.T) {
	i, mock, execSql := newTestIngestor(t)
	// First Exec is the scale-up (failure is a warning only); second is the
	// 2023 COPY, which fails. 2024 must still be attempted.
	mock.QueueError(errors.New("scale up refused"))
	mock.QueueError(errors.New("copy failed for 2023"))
	_, err := i.LoadYears([]int{2023, 2024}, "CO2_WH", c.DefaultWarehouseSizeScaled, c.DefaultWarehouseSizeNormal)
	if err == nil {
		t.Fatal("expected error from failed year")
	}
	stmts := drainSql(execSql)
	var copies, scaleUps, scaleDowns int
	for _, s := range stmts {
		if strings.Contains(s, "COPY INTO") {
			copies++
		}
		if strings.Contains(s, "WAREHOUSE_SIZE = "+c.DefaultWarehouseSizeScaled) {
			scaleUps++
		}
		if strings.Contains(s, "WAREHOUSE_SIZE = "+c.DefaultWarehouseSizeNormal) {
			scaleDowns++
		}
	}
	if copies != 2 {
		t.Fatal("expected both years attempted, got ", copies, " COPY statements")
	}
	if scaleUps != 1 || scaleDowns != 1 {
		t.Fatal("expected scale up and down exactly once, got ", scaleUps, "/", scaleDowns)
	}
}

func TestLoadYearsEmpty(t *testing.T) {
	i, _, execSql := newTestIngestor(t)
	n, err := i.LoadYears(nil, "CO2_WH", c.DefaultWarehouseSizeScaled, c.DefaultWarehouseSizeNormal)
	if err != nil {
		t.Fatal("unexpected error: ", err)
	}
	if n != 0 {
		t.Fatal("expected zero rows loaded, got ", n)
	}
	if len(drainSql(execSql)) != 0 {
		t.Fatal("expected no SQL for empty year list")
	}
}

func TestLatestRawDate(t *testing.T) {
	i, mock, _ := newTestIngestor(t)
	expected := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	mock.QueueRows([]string{"MAX_DATE"}, [][]interface{}{{expected}})
	got, ok, err := i.LatestRawDate()
	if err != nil {
		t.Fatal("unexpected error: ", err)
	}
	if !ok {
		t.Fatal("expected a latest date")
	}
	if !got.Equal(expected) {
		t.Fatal("expected ", expected, ", got ", got)
	}
}

func TestLatestRawDateEmptyTable(t *testing.T) {
	i, mock, _ := newTestIngestor(t)
	mock.QueueRows([]string{"MAX_DATE"}, [][]interface{}{{nil}})
	_, ok, err := i.LatestRawDate()
	if err != nil {
		t.Fatal("unexpected error: ", err)
	}
	if ok {
		t.Fatal("expected no latest date for empty table")
	}
}
