// Package section defines the unit of work of the pipeline and its result.
//
// A Viewport over a Subdivision is partitioned into Requests, one per block
// of the subdivision's grid. Each Request belongs to a Job, which carries
// the job number and the cooperative cancellation state shared by all of
// the job's requests. A Response is the value a cache or generator produces
// for a Request, and a Section is what the caller finally receives.
package section
