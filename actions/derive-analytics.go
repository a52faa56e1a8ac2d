package actions

import (
	"fmt"

	"github.com/relloyd/co2pipe/analytics"
	"github.com/relloyd/co2pipe/config"
	c "github.com/relloyd/co2pipe/constants"
	"github.com/relloyd/co2pipe/helper"
	"github.com/relloyd/co2pipe/rdbms"
)

// RunDeriveAnalytics recomputes the daily and weekly analytics tables from
// the full harmonized history.
func RunDeriveAnalytics(rt *Runtime, cfg *config.Config) (string, error) {
	status, _, err := deriveAnalytics(rt, cfg)
	return status, err
}

func deriveAnalytics(rt *Runtime, cfg *config.Config) (string, int64, error) {
	if err := helper.ValidateStructIsPopulated(cfg); err != nil {
		return "", 0, err
	}
	db, err := rt.NewDb(rt.Log, cfg.SnowflakeDsn)
	if err != nil {
		return "", 0, err
	}
	defer db.Close()
	d := &analytics.Deriver{
		Log:         rt.Log,
		Db:          db,
		Harmonized:  rdbms.NewSchemaTable(cfg.HarmonizedSchema, cfg.HarmonizedTable),
		DailyTable:  rdbms.NewSchemaTable(cfg.AnalyticsSchema, c.DailyAnalyticsTable),
		WeeklyTable: rdbms.NewSchemaTable(cfg.AnalyticsSchema, c.WeeklyAnalyticsTable),
		Warehouse:   cfg.Warehouse,
		ScaledSize:  cfg.WarehouseSizeScaled,
		NormalSize:  cfg.WarehouseSizeNormal,
	}
	res, err := d.Run()
	if err != nil {
		return "", 0, err
	}
	return fmt.Sprintf("CO2_ANALYTICAL_SP: Analytics tables created successfully! Daily rows: %v, Weekly rows: %v",
		res.DailyRows, res.WeeklyRows), int64(res.DailyRows + res.WeeklyRows), nil
}
