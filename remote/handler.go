package remote

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/xraph/mapsection"
	"github.com/xraph/mapsection/backend"
	"github.com/xraph/mapsection/codec"
	"github.com/xraph/mapsection/id"
	"github.com/xraph/mapsection/pool"
	"github.com/xraph/mapsection/section"
)

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithHandlerLogger sets the handler's logger.
func WithHandlerLogger(l *slog.Logger) HandlerOption {
	return func(h *Handler) { h.logger = l }
}

// WithHandlerPools sets the pools generation buffers are drawn from.
func WithHandlerPools(p *pool.Shapes) HandlerOption {
	return func(h *Handler) { h.pools = p }
}

// Handler serves a Generator to remote clients. The codec is chosen by the
// "codec" query parameter and defaults to msgpack.
type Handler struct {
	gen      backend.Generator
	workerID id.WorkerID
	pools    *pool.Shapes
	logger   *slog.Logger
}

// NewHandler returns a Handler serving gen.
func NewHandler(gen backend.Generator, opts ...HandlerOption) *Handler {
	h := &Handler{
		gen:      gen,
		workerID: id.NewWorkerID(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.pools == nil {
		h.pools = pool.NewShapes(mapsection.DefaultConfig().PoolMaxFree)
	}
	return h
}

// WorkerID identifies this handler to its clients.
func (h *Handler) WorkerID() id.WorkerID { return h.workerID }

// ServeHTTP upgrades the request to a WebSocket and serves generate frames
// until the client disconnects.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, brw, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		h.logger.Warn("remote upgrade failed", slog.String("error", err.Error()))
		return
	}

	var rd io.Reader = conn
	if brw != nil {
		rd = brw.Reader
	}
	s := &session{
		h:       h,
		conn:    conn,
		stream:  readWriter{rd, conn},
		codec:   codec.Get(r.URL.Query().Get("codec")),
		cancels: make(map[uint64]context.CancelFunc),
	}
	s.serve()
}

type session struct {
	h      *Handler
	conn   net.Conn
	stream io.ReadWriter
	codec  codec.Codec

	writeMu sync.Mutex
	mu      sync.Mutex
	cancels map[uint64]context.CancelFunc
	wg      sync.WaitGroup
}

func (s *session) serve() {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		s.wg.Wait()
		s.conn.Close()
	}()

	remoteAddr := s.conn.RemoteAddr().String()
	s.h.logger.Debug("remote client connected",
		slog.String("remote_addr", remoteAddr),
		slog.String("codec", s.codec.Name()),
	)

	if err := s.write(&Frame{Type: FrameHello, WorkerID: s.h.workerID.String()}); err != nil {
		return
	}

	for {
		data, _, err := wsutil.ReadClientData(s.stream)
		if err != nil {
			s.h.logger.Debug("remote client disconnected",
				slog.String("remote_addr", remoteAddr),
				slog.String("error", err.Error()),
			)
			return
		}

		var f Frame
		if err := s.codec.Unmarshal(data, &f); err != nil {
			s.h.logger.Warn("remote frame decode failed", slog.String("error", err.Error()))
			continue
		}

		switch f.Type {
		case FrameGenerate:
			s.start(ctx, f)
		case FrameCancel:
			s.mu.Lock()
			if c, ok := s.cancels[f.ID]; ok {
				c()
			}
			s.mu.Unlock()
		}
	}
}

func (s *session) start(ctx context.Context, f Frame) {
	if f.Request == nil {
		_ = s.write(&Frame{ID: f.ID, Type: FrameError, Error: "generate frame without request"})
		return
	}

	job := section.NewJob(ctx, f.Request.JobNumber)
	s.mu.Lock()
	s.cancels[f.ID] = job.Cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.cancels, f.ID)
			s.mu.Unlock()
			job.Cancel()
		}()

		reply := s.generate(job, f)
		if err := s.write(reply); err != nil {
			s.h.logger.Debug("remote reply failed",
				slog.Uint64("frame_id", f.ID),
				slog.String("error", err.Error()),
			)
		}
	}()
}

func (s *session) generate(job *section.Job, f Frame) *Frame {
	req, err := f.Request.Request(job)
	if err != nil {
		return &Frame{ID: f.ID, Type: FrameError, Error: err.Error()}
	}

	bs := req.BlockSize()
	buf := s.h.pools.Obtain(bs.Width, bs.Height)
	defer buf.Release()

	start := time.Now()
	if err := s.h.gen.Generate(job.Context(), req, buf.Value); err != nil {
		return &Frame{ID: f.ID, Type: FrameError, Error: err.Error()}
	}

	res := &GenerateResult{
		Counts:   append([]uint32(nil), buf.Value.Counts...),
		Duration: time.Since(start),
	}
	if req.Settings.UseEscapeVelocities {
		res.EscapeVelocities = append([]uint16(nil), buf.Value.EscapeVelocities...)
	}
	return &Frame{ID: f.ID, Type: FrameResult, Result: res}
}

func (s *session) write(f *Frame) error {
	data, err := s.codec.Marshal(f)
	if err != nil {
		return err
	}
	op := ws.OpText
	if s.codec.Binary() {
		op = ws.OpBinary
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return wsutil.WriteServerMessage(s.conn, op, data)
}
