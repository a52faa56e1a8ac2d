package actions

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	s3 "github.com/relloyd/co2pipe/aws/s3"
	"github.com/relloyd/co2pipe/cdc"
	"github.com/relloyd/co2pipe/config"
	c "github.com/relloyd/co2pipe/constants"
	"github.com/relloyd/co2pipe/fetch"
	"github.com/relloyd/co2pipe/helper"
	"github.com/relloyd/co2pipe/ingest"
	"github.com/relloyd/co2pipe/partition"
	"github.com/relloyd/co2pipe/rdbms"
	"github.com/relloyd/co2pipe/rdbms/shared"
)

// RunLoadRaw copies the year partitions found in the object store into the
// raw table. The change stream is created before the COPY so every landed row
// is captured for the harmonized merge.
func RunLoadRaw(rt *Runtime, cfg *config.Config) (string, error) {
	status, _, err := loadRaw(rt, cfg)
	return status, err
}

func loadRaw(rt *Runtime, cfg *config.Config) (string, int64, error) {
	if err := helper.ValidateStructIsPopulated(cfg); err != nil {
		return "", 0, err
	}
	db, err := rt.NewDb(rt.Log, cfg.SnowflakeDsn)
	if err != nil {
		return "", 0, err
	}
	defer db.Close()
	ing, _, err := setupRawObjects(rt, cfg, db)
	if err != nil {
		return "", 0, err
	}
	client := rt.NewS3(cfg.BucketName, cfg.BucketRegion, cfg.BucketPrefix)
	years, err := discoverYears(client)
	if err != nil {
		return "", 0, err
	}
	if len(years) == 0 {
		return "CO2_RAW_LOAD: No year partitions found in the object store. Nothing to load.", 0, nil
	}
	rows, err := ing.LoadYears(years, cfg.Warehouse, cfg.WarehouseSizeScaled, cfg.WarehouseSizeNormal)
	if err != nil {
		return "", 0, err
	}
	return fmt.Sprintf("CO2_RAW_LOAD: Loaded %v rows into %v.%v across %v year partitions",
		rows, cfg.RawSchema, cfg.RawTable, len(years)), rows, nil
}

// RunLoadIncremental fetches the feed, keeps only current-year measurements
// dated after the newest raw row, replaces the current-year partition in full
// and copies just that year. A re-uploaded partition reloads whole, which is
// safe: the merge downstream is keyed on date.
func RunLoadIncremental(rt *Runtime, cfg *config.Config) (string, error) {
	status, _, err := loadIncremental(rt, cfg)
	return status, err
}

func loadIncremental(rt *Runtime, cfg *config.Config) (string, int64, error) {
	if err := helper.ValidateStructIsPopulated(cfg); err != nil {
		return "", 0, err
	}
	db, err := rt.NewDb(rt.Log, cfg.SnowflakeDsn)
	if err != nil {
		return "", 0, err
	}
	defer db.Close()
	ing, _, err := setupRawObjects(rt, cfg, db)
	if err != nil {
		return "", 0, err
	}
	latest, haveLatest, err := ing.LatestRawDate()
	if err != nil {
		return "", 0, err
	}
	text, err := fetch.Fetch(rt.Log, rt.HTTPClient, cfg.SourceURL)
	if err != nil {
		return "", 0, err
	}
	res, err := fetch.ParseLines(rt.Log, text)
	if err != nil {
		return "", 0, err
	}
	currentYear := rt.Now().UTC().Year()
	var newCount int
	currentYearRows := make([]fetch.Measurement, 0)
	for _, m := range res.Measurements {
		if m.Year != currentYear {
			continue
		}
		currentYearRows = append(currentYearRows, m)
		if !haveLatest || m.Date().After(latest) {
			newCount++
		}
	}
	if newCount == 0 {
		return "CO2_RAW_LOAD: No new CO2 data to load. Database is up to date.", 0, nil
	}
	client := rt.NewS3(cfg.BucketName, cfg.BucketRegion, cfg.BucketPrefix)
	groups := map[int][]fetch.Measurement{currentYear: currentYearRows}
	if _, err := partition.Upload(rt.Log, client, groups, res.HasDailyChange()); err != nil {
		return "", 0, err
	}
	rows, err := ing.LoadYears([]int{currentYear}, cfg.Warehouse, cfg.WarehouseSizeScaled, cfg.WarehouseSizeNormal)
	if err != nil {
		return "", 0, err
	}
	return fmt.Sprintf("CO2_RAW_LOAD: Found %v new records. Loaded %v rows into %v.%v for year %v",
		newCount, rows, cfg.RawSchema, cfg.RawTable, currentYear), rows, nil
}

// setupRawObjects ensures the raw table and its change stream exist.
// The stream must exist before any COPY so the load's changes land in it.
func setupRawObjects(rt *Runtime, cfg *config.Config, db shared.Connector) (*ingest.Ingestor, *cdc.Stream, error) {
	ing := &ingest.Ingestor{
		Log:       rt.Log,
		Db:        db,
		RawTable:  rdbms.NewSchemaTable(cfg.RawSchema, cfg.RawTable),
		StageName: cfg.StageName,
	}
	if err := ing.EnsureRawTable(); err != nil {
		return nil, nil, err
	}
	stream := &cdc.Stream{
		Log:    rt.Log,
		Db:     db,
		Schema: cfg.RawSchema,
		Name:   cfg.StreamName,
		Table:  rdbms.NewSchemaTable(cfg.RawSchema, cfg.RawTable),
	}
	if err := stream.EnsureExists(cfg.StreamShowInitialRows); err != nil {
		return nil, nil, err
	}
	return ing, stream, nil
}

// discoverYears lists the bucket prefix and extracts the years that have a
// partition file, ascending.
func discoverYears(lister s3.Lister) ([]int, error) {
	keys, err := lister.List("")
	if err != nil {
		return nil, err
	}
	seen := map[int]bool{}
	for _, key := range keys {
		if !strings.HasSuffix(key, c.PartitionFileName) {
			continue
		}
		parts := strings.Split(key, "/")
		if len(parts) < 2 {
			continue
		}
		year, err := strconv.Atoi(parts[len(parts)-2])
		if err != nil {
			continue
		}
		seen[year] = true
	}
	years := make([]int, 0, len(seen))
	for year := range seen {
		years = append(years, year)
	}
	sort.Ints(years)
	return years, nil
}
