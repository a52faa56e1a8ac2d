package fetch

import (
	"database/sql"
	"fmt"
	"io/ioutil"
	"net/http"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	c "github.com/relloyd/co2pipe/constants"
	"github.com/relloyd/co2pipe/logger"
)

// ErrSourceUnavailable means the upstream transfer failed or returned a
// non-success status. Callers must not treat a failed fetch as "no new data".
var ErrSourceUnavailable = errors.New("source unavailable")

// Result holds the parsed feed.
type Result struct {
	Measurements   []Measurement
	MalformedCount int    // rows dropped for having fewer than the mandatory field count.
	LastColumnName string // label of the final serialized column, fixed per feed shape.
}

// HasDailyChange reports whether the feed supplied the optional daily-change
// column on top of the mandatory five.
func (r *Result) HasDailyChange() bool {
	return r.LastColumnName == c.SourceDailyChangeCol
}

// Fetch retrieves the upstream time series as raw text.
func Fetch(log logger.Logger, client *http.Client, url string) (string, error) {
	if client == nil {
		client = http.DefaultClient
	}
	log.Info("Fetching CO2 data from ", url)
	resp, err := client.Get(url)
	if err != nil {
		return "", errors.Wrap(ErrSourceUnavailable, err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", errors.Wrap(ErrSourceUnavailable, fmt.Sprintf("unexpected status code %v", resp.StatusCode))
	}
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(ErrSourceUnavailable, err.Error())
	}
	return string(body), nil
}

// ParseLines converts the newline-delimited feed text into Measurements.
// Comment lines and blank lines are discarded. Rows with fewer than 5 fields
// are dropped and counted as malformed. The maximum column count across
// retained rows decides whether the feed supplies the optional daily-change
// column. Year/month/day must parse as integers or the whole run fails;
// the measurement fields coerce leniently to null.
func ParseLines(log logger.Logger, text string) (*Result, error) {
	lines := strings.Split(text, "\n")
	fieldRows := make([][]string, 0, len(lines))
	malformed := 0
	maxColumns := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, c.SourceCommentMarker) { // if the line is blank or a comment...
			continue
		}
		fields := strings.Fields(trimmed)
		if len(fields) < c.SourceMinFieldCount { // if the row is too short to be a data row...
			log.Debug("Dropping malformed row: ", trimmed)
			malformed++
			continue
		}
		if len(fields) > maxColumns {
			maxColumns = len(fields)
		}
		fieldRows = append(fieldRows, fields)
	}
	lastColumnName := c.SourceCo2Column
	hasDailyChange := maxColumns >= c.SourceMaxFieldCount
	if hasDailyChange {
		lastColumnName = c.SourceDailyChangeCol
	}
	measurements := make([]Measurement, 0, len(fieldRows))
	for _, fields := range fieldRows {
		m := Measurement{}
		var err error
		if m.Year, err = strconv.Atoi(fields[0]); err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("bad year value %q in source feed", fields[0]))
		}
		if m.Month, err = strconv.Atoi(fields[1]); err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("bad month value %q in source feed", fields[1]))
		}
		if m.Day, err = strconv.Atoi(fields[2]); err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("bad day value %q in source feed", fields[2]))
		}
		if m.DecimalDate, err = strconv.ParseFloat(fields[3], 64); err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("bad decimal date value %q in source feed", fields[3]))
		}
		m.Co2Ppm = lenientFloat(fields[4])
		if hasDailyChange && len(fields) >= c.SourceMaxFieldCount {
			m.DailyChange = lenientFloat(fields[5])
		}
		measurements = append(measurements, m)
	}
	log.Info("Parsed ", len(measurements), " measurements from source feed (", malformed, " malformed rows dropped)")
	return &Result{
		Measurements:   measurements,
		MalformedCount: malformed,
		LastColumnName: lastColumnName,
	}, nil
}

// lenientFloat coerces s to a nullable float: failures become null.
func lenientFloat(s string) sql.NullFloat64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: f, Valid: true}
}
