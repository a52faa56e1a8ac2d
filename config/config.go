package config

import (
	"fmt"
	"io/ioutil"
	"os"
	"path"
	"strconv"

	"github.com/ghodss/yaml"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/mitchellh/mapstructure"
	"github.com/relloyd/co2pipe/constants"
	"github.com/relloyd/co2pipe/helper"
)

const (
	MainDir             = ".co2pipe"
	EnvironmentFileName = "environment.yaml" // YAML or JSON, both parse.
)

// Config carries everything a pipeline stage needs. It is passed explicitly
// into each action entry point, never held as ambient global state.
type Config struct {
	Environment string `json:"environment"` // dev|test|prod, used in logs and status strings.
	// Source feed.
	SourceURL string `json:"sourceUrl"`
	// Object store.
	BucketName   string `json:"bucketName" errorTxt:"s3 bucket" mandatory:"yes"`
	BucketPrefix string `json:"bucketPrefix"`
	BucketRegion string `json:"bucketRegion"`
	// Warehouse connection.
	SnowflakeDsn string `json:"snowflakeDsn" errorTxt:"Snowflake DSN" mandatory:"yes"`
	Warehouse    string `json:"warehouse" errorTxt:"Snowflake warehouse" mandatory:"yes"`
	// Warehouse sizing: loads run scaled, everything else runs normal.
	WarehouseSizeNormal string `json:"warehouseSizeNormal"`
	WarehouseSizeScaled string `json:"warehouseSizeScaled"`
	// Warehouse objects.
	RawSchema        string `json:"rawSchema"`
	RawTable         string `json:"rawTable"`
	StreamName       string `json:"streamName"`
	StageName        string `json:"stageName"`
	HarmonizedSchema string `json:"harmonizedSchema"`
	HarmonizedTable  string `json:"harmonizedTable"`
	AnalyticsSchema  string `json:"analyticsSchema"`
	// Validation.
	SiteId              string `json:"siteId"`
	HistoricalFloorYear int    `json:"historicalFloorYear"`
	// Stream bootstrap: replay all historical raw rows on first consumption.
	// Must be requested explicitly since enabling it against a populated table
	// changes what is replayed.
	StreamShowInitialRows bool `json:"streamShowInitialRows"`
}

// ApplyDefaults fills any unset fields from module constants.
func (c *Config) ApplyDefaults() {
	if c.SourceURL == "" {
		c.SourceURL = constants.DefaultSourceURL
	}
	if c.BucketPrefix == "" {
		c.BucketPrefix = constants.DefaultBucketPrefix
	}
	if c.BucketRegion == "" {
		c.BucketRegion = constants.DefaultBucketRegion
	}
	if c.WarehouseSizeNormal == "" {
		c.WarehouseSizeNormal = constants.DefaultWarehouseSizeNormal
	}
	if c.WarehouseSizeScaled == "" {
		c.WarehouseSizeScaled = constants.DefaultWarehouseSizeScaled
	}
	if c.RawSchema == "" {
		c.RawSchema = constants.DefaultRawSchema
	}
	if c.RawTable == "" {
		c.RawTable = constants.DefaultRawTable
	}
	if c.StreamName == "" {
		c.StreamName = constants.DefaultStreamName
	}
	if c.StageName == "" {
		c.StageName = constants.DefaultStageName
	}
	if c.HarmonizedSchema == "" {
		c.HarmonizedSchema = constants.DefaultHarmonizedSchema
	}
	if c.HarmonizedTable == "" {
		c.HarmonizedTable = constants.DefaultHarmonizedTable
	}
	if c.AnalyticsSchema == "" {
		c.AnalyticsSchema = constants.DefaultAnalyticsSchema
	}
	if c.SiteId == "" {
		c.SiteId = constants.DefaultSiteId
	}
	if c.HistoricalFloorYear == 0 {
		c.HistoricalFloorYear = constants.DefaultHistoricalFloorYear
	}
}

// applyEnv overrides fields from CO2PIPE_* environment variables.
func (c *Config) applyEnv() {
	c.Environment = helper.ReadValueFromEnvWithDefault(constants.EnvVarEnvironmentKey, c.Environment)
	c.SourceURL = helper.ReadValueFromEnvWithDefault(helper.GetEnvVarName("source-url"), c.SourceURL)
	c.BucketName = helper.ReadValueFromEnvWithDefault(helper.GetEnvVarName("bucket-name"), c.BucketName)
	c.BucketPrefix = helper.ReadValueFromEnvWithDefault(helper.GetEnvVarName("bucket-prefix"), c.BucketPrefix)
	c.BucketRegion = helper.ReadValueFromEnvWithDefault(helper.GetEnvVarName("bucket-region"), c.BucketRegion)
	c.SnowflakeDsn = helper.ReadValueFromEnvWithDefault(helper.GetDsnEnvVarName("snowflake"), c.SnowflakeDsn)
	c.Warehouse = helper.ReadValueFromEnvWithDefault(helper.GetEnvVarName("warehouse"), c.Warehouse)
	c.WarehouseSizeNormal = helper.ReadValueFromEnvWithDefault(helper.GetEnvVarName("warehouse-size-normal"), c.WarehouseSizeNormal)
	c.WarehouseSizeScaled = helper.ReadValueFromEnvWithDefault(helper.GetEnvVarName("warehouse-size-scaled"), c.WarehouseSizeScaled)
	c.SiteId = helper.ReadValueFromEnvWithDefault(helper.GetEnvVarName("site-id"), c.SiteId)
	if v := helper.ReadValueFromEnvWithDefault(helper.GetEnvVarName("historical-floor-year"), ""); v != "" {
		if y, err := strconv.Atoi(v); err == nil {
			c.HistoricalFloorYear = y
		}
	}
	if v := helper.ReadValueFromEnvWithDefault(helper.GetEnvVarName("stream-show-initial-rows"), ""); v != "" {
		c.StreamShowInitialRows = helper.GetTrueFalseStringAsBool(v)
	}
}

// Load resolves the pipeline Config with precedence:
// environment variables > environment file > defaults.
// A missing environment file is not an error; the env vars may carry
// everything required.
func Load() (*Config, error) {
	c := &Config{}
	filePath, err := environmentFilePath()
	if err != nil {
		return nil, err
	}
	if data, err := ioutil.ReadFile(filePath); err == nil { // if the environment file exists...
		m := make(map[string]interface{})
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("error parsing environment file %v: %w", filePath, err)
		}
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{TagName: "json", Result: c})
		if err != nil {
			return nil, err
		}
		if err := dec.Decode(m); err != nil {
			return nil, fmt.Errorf("error decoding environment file %v: %w", filePath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("error reading environment file %v: %w", filePath, err)
	}
	c.applyEnv()
	c.ApplyDefaults()
	return c, nil
}

func environmentFilePath() (string, error) {
	if p := os.Getenv(helper.GetEnvVarName("environment-file")); p != "" { // if the user overrides the file location...
		return p, nil
	}
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("unable to find home directory: %w", err)
	}
	return path.Join(home, MainDir, EnvironmentFileName), nil
}
