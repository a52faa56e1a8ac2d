package rdbms

import (
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/relloyd/co2pipe/constants"
	"github.com/relloyd/co2pipe/logger"
	"github.com/relloyd/co2pipe/rdbms/shared"
	sf "github.com/snowflakedb/gosnowflake"
)

type SnowflakeConnectionDetails struct {
	Account   string `errorTxt:"Snowflake account" mandatory:"yes"`
	DBName    string `errorTxt:"Snowflake db name" mandatory:"yes"`
	Schema    string `errorTxt:"Snowflake schema" mandatory:"yes"`
	User      string `errorTxt:"Snowflake username" mandatory:"yes"`
	Password  string `errorTxt:"Snowflake password" mandatory:"yes"`
	Warehouse string `errorTxt:"Snowflake warehouse"`
	RoleName  string `errorTxt:"Snowflake role name"`
}

func (d SnowflakeConnectionDetails) String() string {
	return fmt.Sprintf("%v:%v@%v/%v?schema=%v&warehouse=%v&role=%v",
		d.User,
		"xxxxxxx",
		d.Account,
		d.DBName,
		d.Schema,
		d.Warehouse,
		d.RoleName,
	)
}

// NewSnowflakeConnection opens the Snowflake database connection specified by
// the DSN. The DSN is parsed up front so a malformed value fails before any
// network round trip, and the (redacted) target is logged.
func NewSnowflakeConnection(log logger.Logger, dsn string) (shared.Connector, error) {
	if !strings.HasPrefix(dsn, "snowflake://") { // if the scheme prefix is missing...
		dsn = "snowflake://" + dsn
	}
	details, err := SnowflakeParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("bad Snowflake DSN: %w", err)
	}
	log.Info("Connecting to Snowflake ", details.String())
	conn := &shared.WhConnection{
		Dml:    &shared.DmlGeneratorTxtBatch{},
		DbType: constants.ConnectionTypeSnowflake,
	}
	conn.DbSql, err = sql.Open("snowflake", strings.TrimPrefix(dsn, "snowflake://"))
	if err != nil {
		return nil, err
	}
	err = conn.DbSql.Ping()
	if err != nil {
		return nil, fmt.Errorf("failed to ping Snowflake: %w", err)
	}
	log.Info("Successful database connection to Snowflake.")
	return conn, nil
}

// SnowflakeGetDSN constructs a DSN based on SnowflakeConnectionDetails.
// The prefix 'snowflake://' is added to the DSN.
func SnowflakeGetDSN(c *SnowflakeConnectionDetails) (string, error) {
	cfg := &sf.Config{
		Account:   c.Account,
		Database:  c.DBName,
		Schema:    c.Schema,
		User:      c.User,
		Password:  c.Password,
		Warehouse: c.Warehouse,
		Role:      c.RoleName,
	}
	dsn, err := sf.DSN(cfg)
	if err != nil {
		return "", err
	}
	// Prefix with 'snowflake://'
	re := regexp.MustCompile("^snowflake://")
	if !re.MatchString(dsn) { // if the prefix is missing...
		dsn = fmt.Sprintf("snowflake://%v", dsn)
	}
	return dsn, err
}

// SnowflakeParseDSN converts a Snowflake DSN into native connection details.
// The prefix 'snowflake://' is removed from the DSN if it exists.
func SnowflakeParseDSN(d string) (*SnowflakeConnectionDetails, error) {
	// Validate the DSN starts with 'snowflake://'
	re := regexp.MustCompile("^snowflake://")
	if !re.MatchString(d) {
		return nil, errors.New("unsupported Snowflake DSN format")
	}
	d = strings.TrimPrefix(d, "snowflake://")
	// Parse the real DSN.
	cfg, err := sf.ParseDSN(d)
	if err != nil {
		return nil, err
	}
	retval := &SnowflakeConnectionDetails{
		User:      cfg.User,
		Password:  cfg.Password,
		Schema:    cfg.Schema,
		DBName:    cfg.Database,
		Account:   cfg.Account,
		RoleName:  cfg.Role,
		Warehouse: cfg.Warehouse,
	}
	if cfg.Region != "" { // if region exists in the parsed config...
		// Add it to our account settings.
		retval.Account = fmt.Sprintf("%v.%v", retval.Account, cfg.Region)
	}
	return retval, nil
}
