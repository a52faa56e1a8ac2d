package analytics

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	h "github.com/relloyd/co2pipe/helper"
	"github.com/relloyd/co2pipe/logger"
	"github.com/relloyd/co2pipe/rdbms"
	"github.com/relloyd/co2pipe/rdbms/shared"
)

// HarmonizedRow is one harmonized measurement as the deriver reads it.
type HarmonizedRow struct {
	Date   time.Time
	Year   int
	Month  int
	Day    int
	Co2Ppm float64
}

// DailyRow is one row of the recomputed daily analytics table.
type DailyRow struct {
	Date            time.Time
	Year            int
	MonthNum        int
	Day             int
	Co2Ppm          float64
	DayOfWeek       string
	MonthName       string
	NormalizedCo2   float64
	DailyVolatility float64
	DailyPctChange  float64
}

// WeeklyRow is one row of the recomputed weekly analytics table. A week is a
// fixed seven-day window counted from the first harmonized date; the window's
// representative value is its last measurement in date order.
type WeeklyRow struct {
	WeekStart        time.Time
	WeekEnd          time.Time
	Co2Ppm           float64
	NormalizedCo2    float64
	WeeklyVolatility float64
	WeeklyPctChange  float64
}

// Deriver recomputes the analytics tables wholesale from the harmonized
// table. Analytics rows are derived data: each run replaces both tables so
// they always reflect the full harmonized history.
type Deriver struct {
	Log         logger.Logger `errorTxt:"logger" mandatory:"yes"`
	Db          shared.Connector
	Harmonized  rdbms.SchemaTable // e.g. HARMONIZED_CO2.CO2_HARMONIZED
	DailyTable  rdbms.SchemaTable // e.g. ANALYTICS_CO2.DAILY_ANALYTICS
	WeeklyTable rdbms.SchemaTable // e.g. ANALYTICS_CO2.WEEKLY_ANALYTICS
	Warehouse   string
	ScaledSize  string
	NormalSize  string
}

// Result reports what one analytics run produced.
type Result struct {
	DailyRows  int
	WeeklyRows int
}

// Run loads the harmonized history in date order, derives the daily and
// weekly analytics and replaces both tables. The warehouse scales up for the
// run and back down in a defer.
func (d *Deriver) Run() (Result, error) {
	defer rdbms.ScaleUpForBulkLoad(d.Log, d.Db, d.Warehouse, d.ScaledSize, d.NormalSize)()
	rows, err := d.loadHarmonized()
	if err != nil {
		return Result{}, err
	}
	daily := DeriveDaily(rows)
	weekly := DeriveWeekly(rows)
	if err := d.replaceDaily(daily); err != nil {
		return Result{}, err
	}
	if err := d.replaceWeekly(weekly); err != nil {
		return Result{}, err
	}
	d.Log.Info("Derived ", len(daily), " daily and ", len(weekly), " weekly analytics rows")
	return Result{DailyRows: len(daily), WeeklyRows: len(weekly)}, nil
}

// loadHarmonized reads the harmonized measurements ascending by date so the
// previous-value lookups below are plain index arithmetic on the slice.
func (d *Deriver) loadHarmonized() ([]HarmonizedRow, error) {
	q := fmt.Sprintf("SELECT CO2_DATE, YEAR, MONTH, DAY, CO2_PPM FROM %v ORDER BY CO2_DATE", d.Harmonized.String())
	rows, err := d.Db.Query(q)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("failed to read %v", d.Harmonized.String()))
	}
	defer rows.Close()
	var out []HarmonizedRow
	for rows.Next() {
		var r HarmonizedRow
		if err := rows.Scan(&r.Date, &r.Year, &r.Month, &r.Day, &r.Co2Ppm); err != nil {
			return nil, errors.Wrap(err, "failed to scan harmonized row")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeriveDaily computes the per-day metrics over date-sorted harmonized rows.
// The previous value for row i is row i-1; the first row has none, so its
// change metrics carry the 0.0 sentinel.
func DeriveDaily(rows []HarmonizedRow) []DailyRow {
	if len(rows) == 0 {
		return nil
	}
	min, max := ppmRange(rows)
	out := make([]DailyRow, len(rows))
	for i, r := range rows {
		var prev *float64
		if i > 0 {
			prev = &rows[i-1].Co2Ppm
		}
		curr := r.Co2Ppm
		out[i] = DailyRow{
			Date:            r.Date,
			Year:            r.Year,
			MonthNum:        r.Month,
			Day:             r.Day,
			Co2Ppm:          Round(curr, 3),
			DayOfWeek:       r.Date.Format("Mon"),
			MonthName:       r.Date.Format("Jan"),
			NormalizedCo2:   Round(Normalize(curr, min, max), 3),
			DailyVolatility: Round(Volatility(&curr, prev), 3),
			DailyPctChange:  Round(PercentChange(prev, &curr), 3),
		}
	}
	return out
}

// DeriveWeekly buckets the date-sorted rows into fixed seven-day windows
// counted from the first date and applies the same metric family across
// consecutive window representatives.
func DeriveWeekly(rows []HarmonizedRow) []WeeklyRow {
	if len(rows) == 0 {
		return nil
	}
	first := rows[0].Date
	// Last row per bucket wins: rows arrive in date order.
	type bucket struct {
		index int
		last  float64
	}
	var buckets []bucket
	for _, r := range rows {
		idx := int(r.Date.Sub(first).Hours() / 24 / 7)
		if len(buckets) > 0 && buckets[len(buckets)-1].index == idx {
			buckets[len(buckets)-1].last = r.Co2Ppm
			continue
		}
		buckets = append(buckets, bucket{index: idx, last: r.Co2Ppm})
	}
	minPpm, maxPpm := buckets[0].last, buckets[0].last
	for _, b := range buckets {
		if b.last < minPpm {
			minPpm = b.last
		}
		if b.last > maxPpm {
			maxPpm = b.last
		}
	}
	out := make([]WeeklyRow, len(buckets))
	for i, b := range buckets {
		var prev *float64
		if i > 0 {
			prev = &buckets[i-1].last
		}
		curr := b.last
		start := first.AddDate(0, 0, b.index*7)
		out[i] = WeeklyRow{
			WeekStart:        start,
			WeekEnd:          start.AddDate(0, 0, 6),
			Co2Ppm:           Round(curr, 3),
			NormalizedCo2:    Round(Normalize(curr, minPpm, maxPpm), 3),
			WeeklyVolatility: Round(Volatility(&curr, prev), 3),
			WeeklyPctChange:  Round(PercentChange(prev, &curr), 3),
		}
	}
	return out
}

func ppmRange(rows []HarmonizedRow) (min, max float64) {
	min, max = rows[0].Co2Ppm, rows[0].Co2Ppm
	for _, r := range rows {
		if r.Co2Ppm < min {
			min = r.Co2Ppm
		}
		if r.Co2Ppm > max {
			max = r.Co2Ppm
		}
	}
	return min, max
}

func (d *Deriver) replaceDaily(rows []DailyRow) error {
	ddl := fmt.Sprintf(`CREATE OR REPLACE TABLE %v (
	DATE DATE,
	YEAR NUMBER(4,0),
	MONTH_NUM NUMBER(2,0),
	DAY NUMBER(2,0),
	CO2_PPM FLOAT,
	DAY_OF_WEEK STRING,
	MONTH_NAME STRING,
	NORMALIZED_CO2 FLOAT,
	DAILY_VOLATILITY FLOAT,
	DAILY_PERCENTAGE_CHANGE FLOAT
)`, d.DailyTable.String())
	if _, err := d.Db.Exec(ddl); err != nil {
		return errors.Wrap(err, fmt.Sprintf("failed to replace %v", d.DailyTable.String()))
	}
	if len(rows) == 0 {
		return nil
	}
	cfg := &shared.SqlStatementGeneratorConfig{
		Log:             d.Log,
		OutputSchema:    d.DailyTable.GetSchema(),
		OutputTable:     d.DailyTable.GetTable(),
		TargetKeyCols:   h.StringSliceToOrderedMap([]string{"DATE"}),
		TargetOtherCols: h.StringSliceToOrderedMap([]string{"YEAR", "MONTH_NUM", "DAY", "CO2_PPM", "DAY_OF_WEEK", "MONTH_NAME", "NORMALIZED_CO2", "DAILY_VOLATILITY", "DAILY_PERCENTAGE_CHANGE"}),
	}
	batch, ok := d.Db.GetDmlGenerator().NewInsertGenerator(cfg).(shared.SqlStmtTxtBatcher)
	if !ok {
		return errors.New("insert generator does not support batching")
	}
	batch.InitBatch(len(rows))
	for _, r := range rows {
		values := []interface{}{r.Date, r.Year, r.MonthNum, r.Day, r.Co2Ppm, r.DayOfWeek, r.MonthName, r.NormalizedCo2, r.DailyVolatility, r.DailyPctChange}
		if _, err := batch.AddValuesToBatch(values); err != nil {
			return errors.Wrap(err, "failed to add daily analytics row to batch")
		}
	}
	if _, err := d.Db.Exec(batch.GetStatement(), batch.GetValues()...); err != nil {
		return errors.Wrap(err, fmt.Sprintf("failed to insert into %v", d.DailyTable.String()))
	}
	return nil
}

func (d *Deriver) replaceWeekly(rows []WeeklyRow) error {
	ddl := fmt.Sprintf(`CREATE OR REPLACE TABLE %v (
	WEEK_START DATE,
	WEEK_END DATE,
	CO2_PPM FLOAT,
	NORMALIZED_CO2 FLOAT,
	WEEKLY_VOLATILITY FLOAT,
	WEEKLY_PERCENTAGE_CHANGE FLOAT
)`, d.WeeklyTable.String())
	if _, err := d.Db.Exec(ddl); err != nil {
		return errors.Wrap(err, fmt.Sprintf("failed to replace %v", d.WeeklyTable.String()))
	}
	if len(rows) == 0 {
		return nil
	}
	cfg := &shared.SqlStatementGeneratorConfig{
		Log:             d.Log,
		OutputSchema:    d.WeeklyTable.GetSchema(),
		OutputTable:     d.WeeklyTable.GetTable(),
		TargetKeyCols:   h.StringSliceToOrderedMap([]string{"WEEK_START"}),
		TargetOtherCols: h.StringSliceToOrderedMap([]string{"WEEK_END", "CO2_PPM", "NORMALIZED_CO2", "WEEKLY_VOLATILITY", "WEEKLY_PERCENTAGE_CHANGE"}),
	}
	batch, ok := d.Db.GetDmlGenerator().NewInsertGenerator(cfg).(shared.SqlStmtTxtBatcher)
	if !ok {
		return errors.New("insert generator does not support batching")
	}
	batch.InitBatch(len(rows))
	for _, r := range rows {
		values := []interface{}{r.WeekStart, r.WeekEnd, r.Co2Ppm, r.NormalizedCo2, r.WeeklyVolatility, r.WeeklyPctChange}
		if _, err := batch.AddValuesToBatch(values); err != nil {
			return errors.Wrap(err, "failed to add weekly analytics row to batch")
		}
	}
	if _, err := d.Db.Exec(batch.GetStatement(), batch.GetValues()...); err != nil {
		return errors.Wrap(err, fmt.Sprintf("failed to insert into %v", d.WeeklyTable.String()))
	}
	return nil
}
