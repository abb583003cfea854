package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/xraph/forge"

	"github.com/xraph/mapsection"
	"github.com/xraph/mapsection/engine"
)

func (a *API) listJobs(ctx forge.Context, req *ListJobsRequest) ([]engine.JobStatus, error) {
	jobs := make([]engine.JobStatus, 0)
	for _, n := range a.eng.Jobs() {
		st, ok := a.eng.Status(n)
		if !ok {
			continue
		}
		if req.Running && st.Completed {
			continue
		}
		jobs = append(jobs, st)
	}
	return jobs, ctx.JSON(http.StatusOK, jobs)
}

func (a *API) getJob(ctx forge.Context, _ *GetJobRequest) (*engine.JobStatus, error) {
	n, err := jobNumberParam(ctx)
	if err != nil {
		return nil, err
	}

	st, ok := a.eng.Status(n)
	if !ok {
		return nil, mapRegistryError(fmt.Errorf("job %d: %w", n, mapsection.ErrJobNotFound))
	}
	return &st, ctx.JSON(http.StatusOK, st)
}

func (a *API) stopJob(ctx forge.Context, _ *StopJobRequest) (*struct{}, error) {
	n, err := jobNumberParam(ctx)
	if err != nil {
		return nil, err
	}

	if _, ok := a.eng.Status(n); !ok {
		return nil, mapRegistryError(fmt.Errorf("job %d: %w", n, mapsection.ErrJobNotFound))
	}
	a.eng.StopJob(n)

	return nil, ctx.NoContent(http.StatusNoContent)
}

func jobNumberParam(ctx forge.Context) (int, error) {
	n, err := strconv.Atoi(ctx.Param("jobNumber"))
	if err != nil || n <= 0 {
		return 0, forge.BadRequest(fmt.Sprintf("invalid job number: %q", ctx.Param("jobNumber")))
	}
	return n, nil
}

// mapRegistryError converts sentinel errors to forge HTTP errors.
func mapRegistryError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mapsection.ErrJobNotFound) {
		return forge.NotFound(err.Error())
	}
	return err
}
