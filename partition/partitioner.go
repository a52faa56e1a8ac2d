package partition

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"

	"github.com/pkg/errors"
	s3 "github.com/relloyd/co2pipe/aws/s3"
	c "github.com/relloyd/co2pipe/constants"
	"github.com/relloyd/co2pipe/fetch"
	"github.com/relloyd/co2pipe/logger"
)

// GroupByYear splits measurements into per-year partitions.
func GroupByYear(measurements []fetch.Measurement) map[int][]fetch.Measurement {
	groups := make(map[int][]fetch.Measurement)
	for _, m := range measurements {
		groups[m.Year] = append(groups[m.Year], m)
	}
	return groups
}

// Key returns the object-store key for a year partition.
// The bucket prefix is applied by the S3 client, not here.
func Key(year int) string {
	return fmt.Sprintf("%v/%v", year, c.PartitionFileName)
}

// Serialize renders one year partition as CSV text with a header row.
// Null measurement values serialize as empty fields.
func Serialize(measurements []fetch.Measurement, withDailyChange bool) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	header := []string{"Year", "Month", "Day", "Decimal Date", "CO2 (ppm)"}
	if withDailyChange {
		header = append(header, "CO2 Daily Change")
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, m := range measurements {
		row := []string{
			strconv.Itoa(m.Year),
			strconv.Itoa(m.Month),
			strconv.Itoa(m.Day),
			strconv.FormatFloat(m.DecimalDate, 'f', -1, 64),
			nullableFloatField(m.Co2Ppm.Float64, m.Co2Ppm.Valid),
		}
		if withDailyChange {
			row = append(row, nullableFloatField(m.DailyChange.Float64, m.DailyChange.Valid))
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// Upload serializes each year partition and writes it to the object store.
// Each Put is a full replace of that year's partition (last-write-wins), so
// callers must supply the complete desired set of records for every year
// uploaded, never a delta. Years are uploaded in ascending order so reruns
// produce a deterministic write sequence.
// It returns the uploaded years in order.
func Upload(log logger.Logger, putter s3.Putter, groups map[int][]fetch.Measurement, withDailyChange bool) ([]int, error) {
	years := make([]int, 0, len(groups))
	for year := range groups {
		years = append(years, year)
	}
	sort.Ints(years)
	for _, year := range years {
		data, err := Serialize(groups[year], withDailyChange)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("failed to serialize partition for year %v", year))
		}
		key := Key(year)
		if err := putter.Put(key, data); err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("failed to upload partition %v", key))
		}
		log.Info("Uploaded partition ", key, " (", len(groups[year]), " rows)")
	}
	return years, nil
}

func nullableFloatField(f float64, valid bool) string {
	if !valid {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
