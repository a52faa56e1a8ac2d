package validate

import (
	"fmt"
	"time"

	"github.com/relloyd/co2pipe/cdc"
	c "github.com/relloyd/co2pipe/constants"
)

// Record is a stream event annotated with exactly one validation status.
// Statuses only ever move away from VALID; once a pass downgrades a record no
// later pass touches it again.
type Record struct {
	cdc.StreamEvent
	Status string
}

// Date reconstructs the measurement date from its components, in UTC.
func (r *Record) Date() time.Time {
	return time.Date(r.Year, time.Month(r.Month), r.Day, 0, 0, 0, 0, time.UTC)
}

// DateKey returns the y/m/d grouping key used for duplicate detection.
func (r *Record) DateKey() string {
	return fmt.Sprintf("%04d-%02d-%02d", r.Year, r.Month, r.Day)
}

// Counts summarises a validation run per status.
type Counts struct {
	Valid         int
	InvalidDate   int
	InvalidValue  int
	DuplicateDate int
}

// Invalid returns the number of records that did not survive validation.
func (c Counts) Invalid() int {
	return c.InvalidDate + c.InvalidValue + c.DuplicateDate
}

// Validator applies the ordered validation passes to a change window.
type Validator struct {
	FloorYear int       // earliest plausible measurement year.
	LowerPpm  float64   // closed plausibility band for concentrations.
	UpperPpm  float64
	Now       func() time.Time // injectable clock for the future-date check.
}

// NewValidator returns a validator with the pipeline's standard bounds.
func NewValidator() *Validator {
	return &Validator{
		FloorYear: c.DefaultHistoricalFloorYear,
		LowerPpm:  c.Co2PpmLowerBound,
		UpperPpm:  c.Co2PpmUpperBound,
		Now:       time.Now,
	}
}

// Apply annotates the events with validation statuses. The passes run in a
// fixed order and each only downgrades VALID records: timestamp plausibility
// first, then value plausibility, then duplicate detection. A future date with
// an out-of-range concentration therefore ends up INVALID_DATE, never
// INVALID_VALUE.
func (v *Validator) Apply(events []cdc.StreamEvent) ([]Record, Counts) {
	records := make([]Record, len(events))
	for i, e := range events {
		records[i] = Record{StreamEvent: e, Status: c.StatusValid}
	}
	v.checkTimestamps(records)
	v.checkValues(records)
	v.checkDuplicates(records)
	counts := Counts{}
	for i := range records {
		switch records[i].Status {
		case c.StatusValid:
			counts.Valid++
		case c.StatusInvalidDate:
			counts.InvalidDate++
		case c.StatusInvalidValue:
			counts.InvalidValue++
		case c.StatusDuplicateDate:
			counts.DuplicateDate++
		}
	}
	return records, counts
}

// ValidOnly filters a validated window down to the records that may proceed
// to the harmonized merge.
func ValidOnly(records []Record) []Record {
	var out []Record
	for _, r := range records {
		if r.Status == c.StatusValid {
			out = append(out, r)
		}
	}
	return out
}

// checkTimestamps flags dates in the future or before the historical floor.
func (v *Validator) checkTimestamps(records []Record) {
	today := v.Now().UTC().Truncate(24 * time.Hour)
	for i := range records {
		if records[i].Status != c.StatusValid {
			continue
		}
		d := records[i].Date()
		if d.After(today) || records[i].Year < v.FloorYear {
			records[i].Status = c.StatusInvalidDate
		}
	}
}

// checkValues flags concentrations outside the closed plausibility band.
// Null concentrations are implausible by definition.
func (v *Validator) checkValues(records []Record) {
	for i := range records {
		if records[i].Status != c.StatusValid {
			continue
		}
		ppm := records[i].Co2Ppm
		if !ppm.Valid || ppm.Float64 < v.LowerPpm || ppm.Float64 > v.UpperPpm {
			records[i].Status = c.StatusInvalidValue
		}
	}
}

// checkDuplicates groups by y/m/d and flags every still-VALID member of a
// group with more than one record. Flagging the whole group keeps the merge
// deterministic: none of the conflicting rows wins.
func (v *Validator) checkDuplicates(records []Record) {
	counts := map[string]int{}
	for i := range records {
		counts[records[i].DateKey()]++
	}
	for i := range records {
		if records[i].Status != c.StatusValid {
			continue
		}
		if counts[records[i].DateKey()] > 1 {
			records[i].Status = c.StatusDuplicateDate
		}
	}
}
