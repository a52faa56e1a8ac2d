package actions

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	s3 "github.com/relloyd/co2pipe/aws/s3"
	"github.com/relloyd/co2pipe/config"
	c "github.com/relloyd/co2pipe/constants"
	"github.com/relloyd/co2pipe/logger"
	"github.com/relloyd/co2pipe/rdbms/shared"
)

var streamCols = []string{"YEAR", "MONTH", "DAY", "DECIMAL_DATE", "CO2_PPM", "METADATA$ACTION", "METADATA$ISUPDATE", "METADATA$ROW_ID"}

var harmonizedCols = []string{"CO2_DATE", "YEAR", "MONTH", "DAY", "CO2_PPM"}

func testLogger() logger.Logger {
	return logger.NewLogger("co2pipe-test", "error", false)
}

// newTestRuntime wires a Runtime to the supplied mocks. The run clock is
// fixed so current-year filtering in tests is deterministic.
func newTestRuntime(log logger.Logger, mock *shared.MockConnection, s3mock *s3.MockClient, now time.Time) *Runtime {
	runSeq := 0
	return &Runtime{
		Log:        log,
		HTTPClient: http.DefaultClient,
		NewDb: func(log logger.Logger, dsn string) (shared.Connector, error) {
			return mock, nil
		},
		NewS3: func(bucket, region, prefix string) s3.BasicClient {
			return s3mock
		},
		NewRunId: func() string {
			runSeq++
			return fmt.Sprintf("run-test-%v", runSeq)
		},
		Now: func() time.Time { return now },
	}
}

func newTestConfig() *config.Config {
	cfg := &config.Config{
		Environment:  "test",
		BucketName:   "test-bucket",
		SnowflakeDsn: "user:pass@account/db",
		Warehouse:    "CO2_WH",
	}
	cfg.ApplyDefaults()
	return cfg
}

// feedServer serves body as the upstream feed for the duration of the test.
func feedServer(body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, body)
	}))
}

func drainSql(execSql chan string) []string {
	var stmts []string
	for {
		select {
		case s := <-execSql:
			stmts = append(stmts, s)
		default:
			return stmts
		}
	}
}

func newMockDb(log logger.Logger) (*shared.MockConnection, chan string) {
	return shared.NewMockConnectionWithMockTx(log, c.ConnectionTypeSnowflake)
}
