package actions

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/relloyd/co2pipe/config"
	"github.com/relloyd/co2pipe/logger"
	"github.com/relloyd/co2pipe/stats"
)

type WebServerResponse uint32

const (
	Okay WebServerResponse = iota + 1
	Error
)

func (w WebServerResponse) MarshalJSON() ([]byte, error) {
	var retval string
	switch w {
	case Okay:
		retval = "ok"
	case Error:
		retval = "error"
	default:
		err := fmt.Errorf("unhandled WebServerResponse value in MarshalJSON() conversion")
		return nil, err
	}
	return json.Marshal(retval)
}

type ResponseSimple struct {
	ServerStatus WebServerResponse `json:"status"`
}

type ResponseRunList struct {
	Status  WebServerResponse `json:"status"`
	RunList []RunListItem     `json:"runs"`
}

type RunListItem struct {
	RunId     string    `json:"runId"`
	Action    string    `json:"action"`
	RunStatus RunStatus `json:"runStatus"`
}

type ResponseRunStats struct {
	Status       WebServerResponse `json:"status"`
	Message      string            `json:"message"`
	StatsSummary interface{}       `json:"runStats"`
}

type ResponseRunStatus struct {
	Status    WebServerResponse `json:"status"`
	Message   string            `json:"message"`
	RunStatus RunStatus         `json:"runStatus"`
}

type ResponseRunLaunch struct {
	Status  WebServerResponse `json:"status"`
	Message string            `json:"message"`
	RunId   string            `json:"runId"`
}

// LaunchRequest is the body of a POST to /launch naming the action to run.
type LaunchRequest struct {
	Action string `json:"action"`
}

type launchRunner func(rt *Runtime, cfg *config.Config, runId string, w *stats.RunWatcher) (string, error)

func singleStageRunner(name string, fn func(rt *Runtime, cfg *config.Config) (string, int64, error)) launchRunner {
	return func(rt *Runtime, cfg *config.Config, runId string, w *stats.RunWatcher) (string, error) {
		w.StartStage(name)
		status, rows, err := fn(rt, cfg)
		if err != nil {
			w.FailStage(name)
			return status, err
		}
		w.CompleteStage(name, rows)
		return status, nil
	}
}

var launchableActions = map[string]launchRunner{
	"pipeline":         runPipelineStages,
	"fetch-upload":     singleStageRunner("fetch-upload", fetchUpload),
	"load-raw":         singleStageRunner("load-raw", loadRaw),
	"load-incremental": singleStageRunner("load-incremental", loadIncremental),
	"merge-harmonized": singleStageRunner("merge-harmonized", mergeHarmonized),
	"derive-analytics": singleStageRunner("derive-analytics", deriveAnalytics),
}

func GetHandlerHealth(log logger.Logger) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		respond(log, w, ResponseSimple{ServerStatus: Okay})
	}
}

func GetHandlerStopServer(log logger.Logger, chanStop chan string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		chanStop <- "stop"
		log.Info("Stop signal sent")
		respond(log, w, ResponseSimple{ServerStatus: Okay})
	}
}

func GetHandlerRunLaunch(log logger.Logger, rt *Runtime, cfg *config.Config, allRunInfo *SafeMapRunInfo) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		// Ingest the action name from the request body JSON.
		b, _ := ioutil.ReadAll(r.Body)
		req := LaunchRequest{}
		err := json.Unmarshal(b, &req)
		if err != nil {
			logAndRespond(log, err, w,
				ResponseRunLaunch{Status: Error, Message: fmt.Sprintf("error unmarshalling JSON: %v", err)})
			return
		}
		runner, ok := launchableActions[req.Action]
		if !ok { // if the action name is unknown...
			err := fmt.Errorf("unknown action %q supplied", req.Action)
			logAndRespond(log, err, w,
				ResponseRunLaunch{Status: Error, Message: err.Error()})
			return
		}
		// Launch in the background; the caller polls /runs/{runId}/status.
		runId := rt.NewRunId()
		watcher := stats.NewRunWatcher(log, runId)
		allRunInfo.Store(runId, &RunInfo{
			RunId:     runId,
			Action:    req.Action,
			Status:    RunStatusRunning,
			StartedAt: rt.Now(),
			Watcher:   watcher,
		})
		go func() {
			status, err := runner(rt, cfg, runId, watcher)
			if err != nil {
				log.Error(err)
				allRunInfo.SetOutcome(runId, RunStatusFailed, err.Error())
				return
			}
			allRunInfo.SetOutcome(runId, RunStatusComplete, status)
		}()
		w.WriteHeader(http.StatusOK)
		respond(log, w, ResponseRunLaunch{Status: Okay, Message: fmt.Sprintf("action %v launched", req.Action), RunId: runId})
		return
	}
}

func GetHandlerRunList(log logger.Logger, allRunInfo *SafeMapRunInfo) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		// Get a list of all run IDs.
		allRunInfo.RLock()
		runs := make([]RunListItem, 0, len(allRunInfo.Internal))
		for runId, v := range allRunInfo.Internal { // for each registered run key...
			runs = append(runs, RunListItem{
				RunId:     runId,
				Action:    v.Action,
				RunStatus: v.Status,
			})
		}
		allRunInfo.RUnlock()
		w.WriteHeader(http.StatusOK)
		respond(log, w, ResponseRunList{Status: Okay, RunList: runs})
	}
}

func GetHandlerRunStats(log logger.Logger, allRunInfo *SafeMapRunInfo) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		id := vars["runId"]
		// Get stats for the given run id.
		s, ok := allRunInfo.Load(id)
		if ok { // if the run exists...
			w.WriteHeader(http.StatusOK)
			respond(log, w, ResponseRunStats{Status: Okay, Message: "", StatsSummary: s.Watcher.RenderStats()})
		} else { // else the run doesn't exist...
			w.WriteHeader(http.StatusBadRequest)
			log.Info("HTTP request to fetch stats for run ", id, " that doesn't exist.")
			respond(log, w, ResponseRunStats{Status: Error, Message: fmt.Sprintf("run %v does not exist", id)})
		}
	}
}

func GetHandlerRunStatus(log logger.Logger, allRunInfo *SafeMapRunInfo) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		id := vars["runId"]
		// Get status for the given run id.
		ri, ok := allRunInfo.Load(id)
		if ok { // if the run exists...
			w.WriteHeader(http.StatusOK)
			respond(log, w, ResponseRunStatus{Status: Okay, Message: ri.Message, RunStatus: ri.Status})
		} else { // else the run doesn't exist...
			w.WriteHeader(http.StatusBadRequest)
			log.Info("HTTP request status of run ", id, " that doesn't exist.")
			respond(log, w, ResponseRunStatus{Status: Error, Message: fmt.Sprintf("run %v does not exist", id)})
		}
	}
}

// logAndRespond will log the error, write a http.StatusBadRequest and r to w.
func logAndRespond(log logger.Logger, err error, w http.ResponseWriter, r ResponseRunLaunch) {
	log.Error(err)
	w.WriteHeader(http.StatusBadRequest)
	respond(log, w, r)
}

// respond will marshal i to a string and write it to w.
func respond(log logger.Logger, w http.ResponseWriter, i interface{}) {
	j, err := json.MarshalIndent(i, "", "  ")
	if err != nil {
		log.Panic(err)
	}
	_, err = fmt.Fprint(w, string(j))
	if err != nil {
		log.Panic(err)
	}
}
