package actions

import (
	"fmt"
	"net/http"
	"time"

	s3 "github.com/relloyd/co2pipe/aws/s3"
	c "github.com/relloyd/co2pipe/constants"
	"github.com/relloyd/co2pipe/logger"
	"github.com/relloyd/co2pipe/rdbms"
	"github.com/relloyd/co2pipe/rdbms/shared"
	"github.com/rs/xid"
)

// Runtime carries the external dependencies an action needs. The factory
// funcs default to the real warehouse and object-store clients; tests swap
// them for mocks.
type Runtime struct {
	Log        logger.Logger
	HTTPClient *http.Client
	NewDb      func(log logger.Logger, dsn string) (shared.Connector, error)
	NewS3      func(bucket, region, prefix string) s3.BasicClient
	NewRunId   func() string
	Now        func() time.Time
}

func NewRuntime(log logger.Logger) *Runtime {
	return &Runtime{
		Log:        log,
		HTTPClient: &http.Client{Timeout: time.Second * 60},
		NewDb:      rdbms.NewSnowflakeConnection,
		NewS3:      s3.NewBasicClient,
		NewRunId: func() string { // run ids sort by start time and stay unique under concurrent launches.
			return fmt.Sprintf("%v-%v", time.Now().UTC().Format(c.TimeFormatYearSeconds), xid.New().String())
		},
		Now: time.Now,
	}
}
