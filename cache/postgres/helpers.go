package postgres

import "github.com/xraph/mapsection/cache"

// keyArgs holds cache keys as parallel arrays for unnest.
type keyArgs struct {
	subdivisions []string
	xs           []int64
	ys           []int64
	iterations   []int32
}

func newKeyArgs(n int) *keyArgs {
	return &keyArgs{
		subdivisions: make([]string, 0, n),
		xs:           make([]int64, 0, n),
		ys:           make([]int64, 0, n),
		iterations:   make([]int32, 0, n),
	}
}

func (a *keyArgs) add(k cache.Key) {
	a.subdivisions = append(a.subdivisions, k.SubdivisionID)
	a.xs = append(a.xs, k.BlockX)
	a.ys = append(a.ys, k.BlockY)
	a.iterations = append(a.iterations, int32(k.TargetIterations))
}

func releaseAll(results []cache.Result) {
	for _, r := range results {
		r.Response.Release()
	}
}
