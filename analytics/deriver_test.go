package analytics

import (
	"math"
	"strings"
	"testing"
	"time"

	c "github.com/relloyd/co2pipe/constants"
	"github.com/relloyd/co2pipe/logger"
	"github.com/relloyd/co2pipe/rdbms"
	"github.com/relloyd/co2pipe/rdbms/shared"
)

func day(yyyy, mm, dd int) time.Time {
	return time.Date(yyyy, time.Month(mm), dd, 0, 0, 0, 0, time.UTC)
}

func harmonizedRow(yyyy, mm, dd int, ppm float64) HarmonizedRow {
	return HarmonizedRow{Date: day(yyyy, mm, dd), Year: yyyy, Month: mm, Day: dd, Co2Ppm: ppm}
}

func TestDeriveDailyFirstRowHasSentinelChanges(t *testing.T) {
	rows := []HarmonizedRow{
		harmonizedRow(2024, 1, 1, 418.50),
		harmonizedRow(2024, 1, 2, 418.65),
		harmonizedRow(2024, 1, 3, 418.75),
	}
	daily := DeriveDaily(rows)
	if len(daily) != 3 {
		t.Fatal("expected 3 daily rows, got ", len(daily))
	}
	if daily[0].DailyPctChange != 0.0 || daily[0].DailyVolatility != 0.0 {
		t.Fatal("expected sentinel metrics on first row, got ", daily[0])
	}
	// (418.65 - 418.50) / 418.50 * 100 rounded to 3dp.
	if math.Abs(daily[1].DailyPctChange-0.036) > 1e-9 {
		t.Fatal("expected day 2 percent change ~0.036, got ", daily[1].DailyPctChange)
	}
}

func TestDeriveDailyDayAndMonthNames(t *testing.T) {
	daily := DeriveDaily([]HarmonizedRow{harmonizedRow(2024, 1, 1, 418.50)}) // a Monday.
	if daily[0].DayOfWeek != "Mon" {
		t.Fatal("expected Mon, got ", daily[0].DayOfWeek)
	}
	if daily[0].MonthName != "Jan" {
		t.Fatal("expected Jan, got ", daily[0].MonthName)
	}
}

func TestDeriveDailyNormalization(t *testing.T) {
	rows := []HarmonizedRow{
		harmonizedRow(2024, 1, 1, 410.0),
		harmonizedRow(2024, 1, 2, 415.0),
		harmonizedRow(2024, 1, 3, 420.0),
	}
	daily := DeriveDaily(rows)
	if daily[0].NormalizedCo2 != 0.0 || daily[2].NormalizedCo2 != 1.0 {
		t.Fatal("expected normalization to span [0,1], got ", daily[0].NormalizedCo2, " and ", daily[2].NormalizedCo2)
	}
	if math.Abs(daily[1].NormalizedCo2-0.5) > 1e-9 {
		t.Fatal("expected midpoint 0.5, got ", daily[1].NormalizedCo2)
	}
}

func TestDeriveDailySingleRowNormalizesToMidpoint(t *testing.T) {
	daily := DeriveDaily([]HarmonizedRow{harmonizedRow(2024, 1, 1, 418.50)})
	if daily[0].NormalizedCo2 != 0.5 {
		t.Fatal("expected 0.5 for degenerate range, got ", daily[0].NormalizedCo2)
	}
}

func TestDeriveWeeklyBucketsAreFixedSevenDayWindows(t *testing.T) {
	// Days 1..8: day 8 falls in the second window even though a calendar week
	// boundary may not.
	rows := []HarmonizedRow{
		harmonizedRow(2024, 1, 1, 418.0),
		harmonizedRow(2024, 1, 4, 418.4),
		harmonizedRow(2024, 1, 7, 418.9), // last of window 1, the representative.
		harmonizedRow(2024, 1, 8, 419.2), // window 2.
	}
	weekly := DeriveWeekly(rows)
	if len(weekly) != 2 {
		t.Fatal("expected 2 weekly rows, got ", len(weekly))
	}
	if !weekly[0].WeekStart.Equal(day(2024, 1, 1)) || !weekly[0].WeekEnd.Equal(day(2024, 1, 7)) {
		t.Fatal("unexpected first window: ", weekly[0].WeekStart, " - ", weekly[0].WeekEnd)
	}
	if weekly[0].Co2Ppm != 418.9 {
		t.Fatal("expected last chronological value as representative, got ", weekly[0].Co2Ppm)
	}
	if !weekly[1].WeekStart.Equal(day(2024, 1, 8)) {
		t.Fatal("unexpected second window start: ", weekly[1].WeekStart)
	}
	if weekly[0].WeeklyPctChange != 0.0 {
		t.Fatal("expected sentinel for first window, got ", weekly[0].WeeklyPctChange)
	}
	expected := Round(PercentChange(&weekly[0].Co2Ppm, &weekly[1].Co2Ppm), 3)
	if weekly[1].WeeklyPctChange != expected {
		t.Fatal("expected ", expected, ", got ", weekly[1].WeeklyPctChange)
	}
}

func TestDeriveEmptyHistory(t *testing.T) {
	if DeriveDaily(nil) != nil {
		t.Fatal("expected nil daily rows for empty history")
	}
	if DeriveWeekly(nil) != nil {
		t.Fatal("expected nil weekly rows for empty history")
	}
}

func newTestDeriver(t *testing.T) (*Deriver, *shared.MockConnection, chan string) {
	log := logger.NewLogger("co2pipe-test", "error", false)
	mock, execSql := shared.NewMockConnectionWithMockTx(log, c.ConnectionTypeSnowflake)
	d := &Deriver{
		Log:         log,
		Db:          mock,
		Harmonized:  rdbms.NewSchemaTable(c.DefaultHarmonizedSchema, c.DefaultHarmonizedTable),
		DailyTable:  rdbms.NewSchemaTable(c.DefaultAnalyticsSchema, c.DailyAnalyticsTable),
		WeeklyTable: rdbms.NewSchemaTable(c.DefaultAnalyticsSchema, c.WeeklyAnalyticsTable),
		Warehouse:   "CO2_WH",
		ScaledSize:  c.DefaultWarehouseSizeScaled,
		NormalSize:  c.DefaultWarehouseSizeNormal,
	}
	return d, mock, execSql
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

func TestRunReplacesBothTables(t *testing.T) {
	d, mock, execSql := newTestDeriver(t)
	mock.QueueRows(
		[]string{"CO2_DATE", "YEAR", "MONTH", "DAY", "CO2_PPM"},
		[][]interface{}{
			{day(2024, 1, 1), 2024, 1, 1, 418.50},
			{day(2024, 1, 2), 2024, 1, 2, 418.65},
		})
	res, err := d.Run()
	if err != nil {
		t.Fatal("unexpected error: ", err)
	}
	if res.DailyRows != 2 || res.WeeklyRows != 1 {
		t.Fatal("unexpected result: ", res)
	}
	stmts := drainSql(execSql)
	var sawDailyDDL, sawWeeklyDDL, sawDailyInsert, sawWeeklyInsert bool
	for _, s := range stmts {
		if strings.Contains(s, "CREATE OR REPLACE TABLE ANALYTICS_CO2.DAILY_ANALYTICS") {
			sawDailyDDL = true
		}
		if strings.Contains(s, "CREATE OR REPLACE TABLE ANALYTICS_CO2.WEEKLY_ANALYTICS") {
			sawWeeklyDDL = true
		}
		if strings.HasPrefix(s, "insert into ANALYTICS_CO2.DAILY_ANALYTICS") {
			sawDailyInsert = true
			if !strings.Contains(s, "DATE,YEAR,MONTH_NUM,DAY,CO2_PPM,DAY_OF_WEEK,MONTH_NAME,NORMALIZED_CO2,DAILY_VOLATILITY,DAILY_PERCENTAGE_CHANGE") {
				t.Fatal("unexpected daily insert columns: ", s)
			}
		}
		if strings.HasPrefix(s, "insert into ANALYTICS_CO2.WEEKLY_ANALYTICS") {
			sawWeeklyInsert = true
		}
	}
	if !sawDailyDDL || !sawWeeklyDDL || !sawDailyInsert || !sawWeeklyInsert {
		t.Fatal("missing expected statements: ", stmts)
	}
}

func TestRunEmptyHarmonizedStillReplacesTables(t *testing.T) {
	d, mock, execSql := newTestDeriver(t)
	mock.QueueRows([]string{"CO2_DATE", "YEAR", "MONTH", "DAY", "CO2_PPM"}, [][]interface{}{})
	res, err := d.Run()
	if err != nil {
		t.Fatal("unexpected error: ", err)
	}
	if res.DailyRows != 0 || res.WeeklyRows != 0 {
		t.Fatal("unexpected result: ", res)
	}
	stmts := drainSql(execSql)
	var ddls, inserts int
	for _, s := range stmts {
		if strings.Contains(s, "CREATE OR REPLACE TABLE") {
			ddls++
		}
		if strings.HasPrefix(s, "insert into") {
			inserts++
		}
	}
	if ddls != 2 {
		t.Fatal("expected both tables replaced, got ", ddls, " DDLs")
	}
	if inserts != 0 {
		t.Fatal("expected no inserts for empty history")
	}
}
