package actions

import (
	"fmt"

	"github.com/relloyd/co2pipe/cdc"
	"github.com/relloyd/co2pipe/config"
	"github.com/relloyd/co2pipe/harmonize"
	"github.com/relloyd/co2pipe/helper"
	"github.com/relloyd/co2pipe/rdbms"
	"github.com/relloyd/co2pipe/validate"
)

// RunMergeHarmonized consumes the raw change stream, validates the window and
// merges the valid records into the harmonized table.
func RunMergeHarmonized(rt *Runtime, cfg *config.Config) (string, error) {
	status, _, err := mergeHarmonized(rt, cfg)
	return status, err
}

func mergeHarmonized(rt *Runtime, cfg *config.Config) (string, int64, error) {
	if err := helper.ValidateStructIsPopulated(cfg); err != nil {
		return "", 0, err
	}
	db, err := rt.NewDb(rt.Log, cfg.SnowflakeDsn)
	if err != nil {
		return "", 0, err
	}
	defer db.Close()
	v := validate.NewValidator()
	v.FloorYear = cfg.HistoricalFloorYear
	v.Now = rt.Now
	m := &harmonize.Merger{
		Log: rt.Log,
		Db:  db,
		Stream: &cdc.Stream{
			Log:    rt.Log,
			Db:     db,
			Schema: cfg.RawSchema,
			Name:   cfg.StreamName,
			Table:  rdbms.NewSchemaTable(cfg.RawSchema, cfg.RawTable),
		},
		Validator:  v,
		Table:      rdbms.NewSchemaTable(cfg.HarmonizedSchema, cfg.HarmonizedTable),
		SiteId:     cfg.SiteId,
		Warehouse:  cfg.Warehouse,
		ScaledSize: cfg.WarehouseSizeScaled,
		NormalSize: cfg.WarehouseSizeNormal,
		Now:        rt.Now,
	}
	res, err := m.Run(rt.NewRunId())
	if err != nil {
		return "", 0, err
	}
	return fmt.Sprintf("CO2_HARMONIZED_SP: Raw → Harmonized merge complete! "+
		"Valid records: %v (Inserted: %v, Updated: %v), Invalid/skipped: %v",
		res.ValidProcessed, res.Inserted, res.Updated, res.SkippedInvalid), int64(res.ValidProcessed + res.SkippedInvalid), nil
}
