package api

import "github.com/xraph/mapsection/progress"

// ListJobsRequest filters the job list.
type ListJobsRequest struct {
	// Running limits the list to jobs that have not completed.
	Running bool `query:"running"`
}

// GetJobRequest identifies a job.
type GetJobRequest struct {
	JobNumber int `path:"jobNumber"`
}

// StopJobRequest identifies the job to stop.
type StopJobRequest struct {
	JobNumber int `path:"jobNumber"`
}

// StatsResponse is the body of GET /v1/stats.
type StatsResponse struct {
	Jobs           int                  `json:"jobs"`
	RunningJobs    int                  `json:"running_jobs"`
	BackendPending int                  `json:"backend_pending"`
	Progress       progress.BrokerStats `json:"progress"`
}
