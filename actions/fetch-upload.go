package actions

import (
	"fmt"

	"github.com/relloyd/co2pipe/config"
	"github.com/relloyd/co2pipe/fetch"
	"github.com/relloyd/co2pipe/helper"
	"github.com/relloyd/co2pipe/partition"
)

// RunFetchUpload fetches the upstream feed, partitions it by year and
// replaces the year partitions in the object store. Every uploaded partition
// carries the complete data for its year, never a delta.
func RunFetchUpload(rt *Runtime, cfg *config.Config) (string, error) {
	status, _, err := fetchUpload(rt, cfg)
	return status, err
}

// fetchUpload additionally reports how many feed records it handled, for the
// stage watcher.
func fetchUpload(rt *Runtime, cfg *config.Config) (string, int64, error) {
	if err := helper.ValidateStructIsPopulated(cfg); err != nil {
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
	client := rt.NewS3(cfg.BucketName, cfg.BucketRegion, cfg.BucketPrefix)
	groups := partition.GroupByYear(res.Measurements)
	years, err := partition.Upload(rt.Log, client, groups, res.HasDailyChange())
	if err != nil {
		return "", 0, err
	}
	return fmt.Sprintf("CO2_FETCH: Fetched %v records (%v malformed skipped), uploaded %v year partitions to s3://%v/%v",
		len(res.Measurements), res.MalformedCount, len(years), cfg.BucketName, cfg.BucketPrefix), int64(len(res.Measurements)), nil
}
