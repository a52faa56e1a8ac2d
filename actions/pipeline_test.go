package actions

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	s3 "github.com/relloyd/co2pipe/aws/s3"
	"github.com/relloyd/co2pipe/stats"
)

func TestRunPipelineRunsAllStages(t *testing.T) {
	log := testLogger()
	mock, execSql := newMockDb(log)
	srv := feedServer(testFeed)
	defer srv.Close()
	s3mock := s3.NewMockClient()
	rt := newTestRuntime(log, mock, s3mock, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	cfg := newTestConfig()
	cfg.SourceURL = srv.URL
	// Query results in stage order: raw table probe, uniqueness probe,
	// harmonized table probe, stream-has-data probe, harmonized history.
	mock.QueueValue(true)
	mock.QueueRows([]string{"TOTAL", "DISTINCT"}, [][]interface{}{{int64(3), int64(3)}})
	mock.QueueValue(true)
	mock.QueueValue(false)
	mock.QueueRows(harmonizedCols, [][]interface{}{})
	w := stats.NewRunWatcher(log, "run-test-1")
	report, err := runPipelineStages(rt, cfg, "run-test-1", w)
	if err != nil {
		t.Fatal("unexpected error: ", err)
	}
	for _, want := range []string{
		"CO2_PIPELINE run run-test-1 (test environment)",
		"CO2_FETCH: Fetched 3 records",
		"CO2_RAW_LOAD: Loaded 0 rows",
		"CO2_HARMONIZED_SP:",
		"CO2_ANALYTICAL_SP:",
	} {
		if !strings.Contains(report, want) {
			t.Fatal("report missing ", want, ": ", report)
		}
	}
	// The fetch stage uploads partitions that the load stage then discovers.
	if len(s3mock.Puts) != 2 {
		t.Fatal("expected the fetch stage to upload both year partitions: ", s3mock.Puts)
	}
	var copies int
	for _, s := range drainSql(execSql) {
		if strings.Contains(s, "COPY INTO RAW_CO2.CO2_DATA") {
			copies++
		}
	}
	if copies != 2 {
		t.Fatal("expected the load stage to copy both discovered years: ", copies)
	}
	// The watcher carries real per-stage outcomes and row counts.
	for _, s := range w.RenderStats() {
		if s.StatusText != "complete" {
			t.Fatal("expected stage ", s.StageName, " complete, got ", s.StatusText)
		}
		if s.StageName == "fetch-upload" && s.TotalRowsProcessed != 3 {
			t.Fatal("expected the fetch stage to report 3 rows, got ", s.TotalRowsProcessed)
		}
	}
}

func TestRunPipelineStopsOnStageFailure(t *testing.T) {
	log := testLogger()
	mock, execSql := newMockDb(log)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	rt := newTestRuntime(log, mock, s3.NewMockClient(), time.Now())
	cfg := newTestConfig()
	cfg.SourceURL = srv.URL
	w := stats.NewRunWatcher(log, "run-test-f")
	_, err := runPipelineStages(rt, cfg, "run-test-f", w)
	if err == nil {
		t.Fatal("expected the pipeline to fail when the source is down")
	}
	if !strings.Contains(err.Error(), "pipeline stage fetch-upload failed") {
		t.Fatal("unexpected error: ", err)
	}
	if stmts := drainSql(execSql); len(stmts) != 0 {
		t.Fatal("expected no warehouse activity after a failed fetch: ", stmts)
	}
	st := w.RenderStats()
	if len(st) != 1 || st[0].StatusText != "failed" {
		t.Fatal("expected the fetch stage reported as failed, got ", st)
	}
}
