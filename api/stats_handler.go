package api

import (
	"net/http"

	"github.com/xraph/forge"
)

func (a *API) stats(ctx forge.Context) error {
	resp := StatsResponse{
		BackendPending: a.eng.BackendPending(),
		Progress:       a.eng.Broker().Stats(),
	}
	for _, n := range a.eng.Jobs() {
		st, ok := a.eng.Status(n)
		if !ok {
			continue
		}
		resp.Jobs++
		if !st.Completed {
			resp.RunningJobs++
		}
	}
	return ctx.JSON(http.StatusOK, resp)
}
