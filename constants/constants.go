package constants

// Pipeline defaults

const (
	EnvVarPrefix         = "CO2PIPE" // prefix for environment variables in twelveFactorMode
	EnvVarLambdaMode     = EnvVarPrefix + "_LAMBDA_MODE"
	EnvVarEnvironmentKey = EnvVarPrefix + "_ENVIRONMENT"

	// Source feed.
	DefaultSourceURL     = "https://gml.noaa.gov/webdata/ccgg/trends/co2/co2_daily_mlo.txt"
	SourceCommentMarker  = "#"
	SourceMinFieldCount  = 5
	SourceMaxFieldCount  = 6
	SourceCo2Column      = "CO2 (ppm)"
	SourceDailyChangeCol = "CO2 Daily Change"
	PartitionFileName    = "co2_daily_mlo.csv"
	DefaultBucketPrefix  = "noaa-co2-data"
	DefaultBucketRegion  = "us-east-2"

	// Warehouse objects.
	DefaultRawSchema        = "RAW_CO2"
	DefaultRawTable         = "CO2_DATA"
	DefaultStreamName       = "CO2_DATA_STREAM"
	DefaultStageName        = "EXTERNAL.NOAA_CO2_STAGE"
	DefaultHarmonizedSchema = "HARMONIZED_CO2"
	DefaultHarmonizedTable  = "CO2_HARMONIZED"
	DefaultAnalyticsSchema  = "ANALYTICS_CO2"
	DailyAnalyticsTable     = "DAILY_ANALYTICS"
	WeeklyAnalyticsTable    = "WEEKLY_ANALYTICS"

	// Warehouse sizing. Loads run scaled up; everything scales back down after.
	DefaultWarehouseSizeNormal = "XSMALL"
	DefaultWarehouseSizeScaled = "XLARGE"

	// Validation bounds.
	DefaultSiteId              = "MAUNA_LOA"
	DefaultHistoricalFloorYear = 1950
	Co2PpmLowerBound           = 200.0
	Co2PpmUpperBound           = 500.0

	// Validation statuses.
	StatusValid         = "VALID"
	StatusInvalidDate   = "INVALID_DATE"
	StatusInvalidValue  = "INVALID_VALUE"
	StatusDuplicateDate = "DUPLICATE_DATE"

	// Stream event actions consumed by the harmonizer.
	StreamActionInsert = "INSERT"
	StreamActionUpdate = "UPDATE"

	TimeFormatYearSeconds   = "20060102T150405" // used for human readable run names
	ConnectionTypeSnowflake = "snowflake"
	ConnectionTypeS3        = "s3"
)
