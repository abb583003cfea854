// Package backend is the generation backend: a [Dispatcher] that queues
// section requests, coalesces identical ones, and runs them on a pool of
// workers through a [Generator].
//
// A Generator computes one block's values. It may run in process or on a
// remote worker (see package remote). Generation errors never fail a job:
// the request is answered with an empty response.
//
//	d := backend.New(gen,
//	    backend.WithWorkers(8),
//	    backend.WithPersistence(store, 3),
//	    backend.WithMiddleware(middleware.Recover(logger)),
//	)
//	d.Start(ctx)
//	defer d.Stop(ctx)
package backend
