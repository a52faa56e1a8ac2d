package actions

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/relloyd/co2pipe/config"
	"github.com/relloyd/co2pipe/stats"
)

// pipelineStage names one step of the full run; stages execute in order and
// the first failure aborts the rest (completed stages keep their effects,
// which is safe because every stage is idempotent).
type pipelineStage struct {
	name   string
	runner func(rt *Runtime, cfg *config.Config) (string, int64, error)
}

var pipelineStages = []pipelineStage{
	{"fetch-upload", fetchUpload},
	{"load-raw", loadRaw},
	{"merge-harmonized", mergeHarmonized},
	{"derive-analytics", deriveAnalytics},
}

// RunPipeline executes the whole pipeline end to end and returns the per
// stage status lines joined into one report.
func RunPipeline(rt *Runtime, cfg *config.Config) (string, error) {
	runId := rt.NewRunId()
	return runPipelineStages(rt, cfg, runId, stats.NewRunWatcher(rt.Log, runId))
}

func runPipelineStages(rt *Runtime, cfg *config.Config, runId string, w *stats.RunWatcher) (string, error) {
	lines := make([]string, 0, len(pipelineStages)+1)
	lines = append(lines, fmt.Sprintf("CO2_PIPELINE run %v (%v environment)", runId, cfg.Environment))
	for _, stage := range pipelineStages {
		w.StartStage(stage.name)
		status, rows, err := stage.runner(rt, cfg)
		if err != nil {
			w.FailStage(stage.name)
			return strings.Join(lines, "\n"), errors.Wrapf(err, "pipeline stage %v failed", stage.name)
		}
		w.CompleteStage(stage.name, rows)
		lines = append(lines, status)
	}
	return strings.Join(lines, "\n"), nil
}
