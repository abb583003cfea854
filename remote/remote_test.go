package remote_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/xraph/mapsection/backend"
	"github.com/xraph/mapsection/backoff"
	"github.com/xraph/mapsection/codec"
	"github.com/xraph/mapsection/pool"
	"github.com/xraph/mapsection/remote"
	"github.com/xraph/mapsection/section"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newRequest(blockX int64) *section.Request {
	j := section.NewJob(context.Background(), 12)
	req := section.NewRequest(j, 3)
	req.Subdivision = section.NewSubdivision(
		section.RPoint{X: section.NewRValue(-3, 1), Y: section.NewRValue(5, -2)},
		section.RSize{Width: section.NewRValue(1, -40), Height: section.NewRValue(1, -40)},
		section.SizeInt{Width: 4, Height: 3},
	)
	req.BlockOffset = section.VectorLong{X: blockX, Y: 2}
	req.Settings = section.DefaultCalcSettings()
	return req
}

// echoGenerator writes each pixel's index plus the block X offset, and
// checks the subdivision arrived intact.
func echoGenerator(t *testing.T) backend.Generator {
	return backend.GeneratorFunc(func(ctx context.Context, req *section.Request, dst *pool.Vectors) error {
		if req.JobNumber != 12 || req.RequestNumber != 3 {
			t.Errorf("request identity = %s", req.ID())
		}
		if req.Subdivision.BasePosition.X.Cmp(section.NewRValue(-3, 1)) != 0 {
			t.Errorf("base X = %s", req.Subdivision.BasePosition.X)
		}
		if req.Subdivision.SamplePointDelta.Width.Cmp(section.NewRValue(1, -40)) != 0 {
			t.Errorf("delta = %s", req.Subdivision.SamplePointDelta.Width)
		}
		if req.MapPosition.X.Cmp(req.Subdivision.BlockPosition(req.BlockOffset).X) != 0 {
			t.Error("map position not rebuilt")
		}
		for i := range dst.Counts {
			dst.Counts[i] = uint32(i) + uint32(req.BlockOffset.X)
			dst.EscapeVelocities[i] = uint16(i)
		}
		return nil
	})
}

func startServer(t *testing.T, gen backend.Generator) (*remote.Handler, *httptest.Server, string) {
	t.Helper()
	h := remote.NewHandler(gen, remote.WithHandlerLogger(testLogger()))
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return h, srv, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func newClient(t *testing.T, url string, opts ...remote.ClientOption) *remote.Client {
	t.Helper()
	opts = append([]remote.ClientOption{
		remote.WithClientLogger(testLogger()),
		remote.WithDialRetry(3, backoff.NewConstant(10*time.Millisecond)),
	}, opts...)
	c := remote.NewClient(url, opts...)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestClient_Generate(t *testing.T) {
	for _, cd := range []codec.Codec{codec.Msgpack{}, codec.JSON{}} {
		t.Run(cd.Name(), func(t *testing.T) {
			h, _, url := startServer(t, echoGenerator(t))
			c := newClient(t, url, remote.WithCodec(cd))

			req := newRequest(5)
			dst := pool.NewVectors(4, 3)
			if err := c.Generate(context.Background(), req, dst); err != nil {
				t.Fatalf("Generate: %v", err)
			}
			for i, v := range dst.Counts {
				if v != uint32(i+5) {
					t.Fatalf("Counts[%d] = %d, want %d", i, v, i+5)
				}
			}
			if dst.EscapeVelocities[11] != 11 {
				t.Errorf("EscapeVelocities[11] = %d, want 11", dst.EscapeVelocities[11])
			}
			if c.WorkerID() != h.WorkerID().String() {
				t.Errorf("WorkerID = %q, want %q", c.WorkerID(), h.WorkerID())
			}
		})
	}
}

func TestClient_ConcurrentRequests(t *testing.T) {
	_, _, url := startServer(t, echoGenerator(t))
	c := newClient(t, url)

	errs := make(chan error, 8)
	for i := range 8 {
		go func() {
			dst := pool.NewVectors(4, 3)
			if err := c.Generate(context.Background(), newRequest(int64(i)), dst); err != nil {
				errs <- err
				return
			}
			if dst.Counts[0] != uint32(i) {
				errs <- errors.New("response routed to the wrong request")
				return
			}
			errs <- nil
		}()
	}
	for range 8 {
		if err := <-errs; err != nil {
			t.Error(err)
		}
	}
}

func TestClient_RemoteError(t *testing.T) {
	_, _, url := startServer(t, backend.GeneratorFunc(func(context.Context, *section.Request, *pool.Vectors) error {
		return errors.New("iteration kernel unavailable")
	}))
	c := newClient(t, url)

	err := c.Generate(context.Background(), newRequest(1), pool.NewVectors(4, 3))
	if err == nil || !strings.Contains(err.Error(), "iteration kernel unavailable") {
		t.Errorf("err = %v, want the remote error message", err)
	}
}

func TestClient_CancelReachesWorker(t *testing.T) {
	entered := make(chan struct{})
	stopped := make(chan struct{})
	_, _, url := startServer(t, backend.GeneratorFunc(func(ctx context.Context, _ *section.Request, _ *pool.Vectors) error {
		close(entered)
		<-ctx.Done()
		close(stopped)
		return ctx.Err()
	}))
	c := newClient(t, url)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-entered
		cancel()
	}()

	err := c.Generate(ctx, newRequest(1), pool.NewVectors(4, 3))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("remote generation was not cancelled")
	}
}

func TestClient_Reconnects(t *testing.T) {
	_, srv, url := startServer(t, echoGenerator(t))
	c := newClient(t, url)

	if err := c.Generate(context.Background(), newRequest(1), pool.NewVectors(4, 3)); err != nil {
		t.Fatalf("first Generate: %v", err)
	}

	srv.CloseClientConnections()

	var err error
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if err = c.Generate(context.Background(), newRequest(2), pool.NewVectors(4, 3)); err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("Generate after reconnect: %v", err)
	}
}

func TestClient_ClosedClient(t *testing.T) {
	_, _, url := startServer(t, echoGenerator(t))
	c := newClient(t, url)
	_ = c.Close()

	err := c.Generate(context.Background(), newRequest(1), pool.NewVectors(4, 3))
	if !errors.Is(err, remote.ErrClientClosed) {
		t.Errorf("err = %v, want ErrClientClosed", err)
	}
}

func TestClient_AsDispatcherGenerator(t *testing.T) {
	_, _, url := startServer(t, echoGenerator(t))
	c := newClient(t, url)

	d := backend.New(c, backend.WithWorkers(2), backend.WithLogger(testLogger()))
	if err := d.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = d.Stop(context.Background()) }()

	got := make(chan *section.Response, 1)
	if err := d.AddWork(context.Background(), newRequest(7), func(_ *section.Request, resp *section.Response) {
		got <- resp
	}); err != nil {
		t.Fatal(err)
	}

	select {
	case resp := <-got:
		if resp.IsEmpty() || resp.Vectors.Value.Counts[0] != 7 {
			t.Error("dispatcher did not receive remote values")
		}
		resp.Release()
	case <-time.After(5 * time.Second):
		t.Fatal("no response")
	}
}

func TestGenerateRequest_RoundTrip(t *testing.T) {
	req := newRequest(-4)
	g := remote.NewGenerateRequest(req)

	rebuilt, err := g.Request(section.NewJob(context.Background(), g.JobNumber))
	if err != nil {
		t.Fatal(err)
	}
	if rebuilt.Subdivision.ID.String() != req.Subdivision.ID.String() {
		t.Errorf("subdivision ID = %s, want %s", rebuilt.Subdivision.ID, req.Subdivision.ID)
	}
	if rebuilt.BlockOffset != req.BlockOffset || rebuilt.Settings != req.Settings {
		t.Error("block offset or settings changed")
	}

	g.BlockSize = section.SizeInt{}
	if _, err := g.Request(section.NewJob(context.Background(), 1)); err == nil {
		t.Error("expected an error for an empty block size")
	}
	g.BlockSize = req.Subdivision.BlockSize
	g.BaseX.Mantissa = "not-a-number"
	if _, err := g.Request(section.NewJob(context.Background(), 1)); err == nil {
		t.Error("expected an error for a malformed mantissa")
	}
}
