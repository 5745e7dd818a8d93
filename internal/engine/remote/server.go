package remote

import (
	"context"
	"log/slog"
	"net"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rbright/hark/internal/bias"
	"github.com/rbright/hark/internal/engine"
	"github.com/rbright/hark/internal/metrics"
	"github.com/rbright/hark/internal/tokens"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const defaultStateTTL = 5 * time.Minute

// ServerOptions configures a Server.
type ServerOptions struct {
	// Mode is the variant of the hosted model; clients must match it.
	Mode engine.Mode
	// Symbols resolves bias entries sent by clients.
	Symbols *tokens.Table
	// StateTTL evicts decoder states a client has stopped using.
	StateTTL time.Duration
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

// Server exposes one recognizer to remote clients.
type Server struct {
	rec     engine.Recognizer
	info    engine.Info
	opts    ServerOptions
	grpc    *grpc.Server
	health  *health.Server
	now     func() time.Time
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu     sync.Mutex
	states map[string]*heldState
	// decodeMu serializes backend calls when the backend is not concurrent.
	decodeMu sync.Mutex
}

type heldState struct {
	state engine.DecoderState
	seen  time.Time
}

// recognizerServer is the handler type the service descriptor checks.
type recognizerServer interface {
	describe(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	decodeBatch(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*recognizerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Info", Handler: unaryHandler(infoMethod, recognizerServer.describe)},
		{MethodName: "DecodeBatch", Handler: unaryHandler(decodeBatchMethod, recognizerServer.decodeBatch)},
	},
	Metadata: "hark/engine/v1/recognizer",
}

func unaryHandler(method string, call func(recognizerServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(recognizerServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(recognizerServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// NewServer registers the recognizer, health, and reflection services.
func NewServer(rec engine.Recognizer, opts ServerOptions) *Server {
	if opts.StateTTL <= 0 {
		opts.StateTTL = defaultStateTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Server{
		rec:     rec,
		info:    rec.Info(),
		opts:    opts,
		health:  health.NewServer(),
		now:     time.Now,
		logger:  logger,
		metrics: opts.Metrics,
		states:  make(map[string]*heldState),
	}

	s.grpc = grpc.NewServer(grpc.UnaryInterceptor(s.observe))
	s.grpc.RegisterService(&serviceDesc, s)
	healthpb.RegisterHealthServer(s.grpc, s.health)
	reflection.Register(s.grpc)
	s.health.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)
	return s
}

// Serve accepts connections on l until Stop is called.
func (s *Server) Serve(l net.Listener) error {
	s.logger.Info("remote engine serving",
		"address", l.Addr().String(),
		"mode", s.opts.Mode,
		"state_ttl", s.opts.StateTTL.String(),
	)
	return s.grpc.Serve(l)
}

// Stop marks the service unhealthy and drains in-flight calls.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

func (s *Server) observe(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	code := status.Code(err)
	method := path.Base(info.FullMethod)
	s.metrics.RecordRPC(method, code.String(), time.Since(start).Seconds())

	level := slog.LevelDebug
	if err != nil {
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, "rpc handled",
		"method", method,
		"code", code.String(),
		"duration_ms", time.Since(start).Milliseconds(),
		"error", err,
	)
	return resp, err
}

func (s *Server) describe(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	want := engine.Mode(in.GetFields()["mode"].GetStringValue())
	if want != "" && s.opts.Mode != "" && want != s.opts.Mode {
		return nil, status.Errorf(codes.FailedPrecondition, "server hosts a %s model, client wants %s", s.opts.Mode, want)
	}
	return encodeInfo(s.info, s.opts.Mode), nil
}

func (s *Server) decodeBatch(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	wire, err := decodeRequests(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	handles, reqs, err := s.prepare(wire)
	if err != nil {
		return nil, err
	}

	next, err := s.run(ctx, reqs)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "decode batch: %v", err)
	}
	if len(next) != len(reqs) {
		return nil, status.Errorf(codes.Internal, "backend returned %d states for %d requests", len(next), len(reqs))
	}

	now := s.now()
	out := make([]wireState, len(next))
	s.mu.Lock()
	for i, st := range next {
		s.states[handles[i]] = &heldState{state: st, seen: now}
		out[i] = wireState{
			Handle:   handles[i],
			Hyp:      st.Hypothesis(),
			Frames:   st.NumFrames(),
			Trailing: st.TrailingSilenceFrames(),
		}
	}
	s.mu.Unlock()

	return encodeStates(out), nil
}

// prepare resolves handles to held states, minting new ones for empty
// handles, and compiles each request's bias entries.
func (s *Server) prepare(wire []wireRequest) ([]string, []engine.Request, error) {
	handles := make([]string, len(wire))
	reqs := make([]engine.Request, len(wire))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked(s.now())

	seen := make(map[string]struct{}, len(wire))
	for i, w := range wire {
		handle := w.Handle
		var st engine.DecoderState
		if handle == "" {
			handle = uuid.NewString()
			st = s.rec.NewState()
		} else {
			held, ok := s.states[handle]
			if !ok {
				return nil, nil, status.Errorf(codes.NotFound, "unknown state handle %q", handle)
			}
			st = held.state
		}
		if _, dup := seen[handle]; dup {
			return nil, nil, status.Errorf(codes.InvalidArgument, "state handle %q appears twice in one batch", handle)
		}
		seen[handle] = struct{}{}

		var graph *bias.Graph
		if len(w.Bias) > 0 {
			if s.opts.Symbols == nil {
				return nil, nil, status.Error(codes.FailedPrecondition, "server has no symbol table for bias lists")
			}
			g, err := bias.Compile(w.Bias, s.opts.Symbols)
			if err != nil {
				return nil, nil, status.Errorf(codes.InvalidArgument, "request %d: %v", i, err)
			}
			graph = g
		}

		handles[i] = handle
		reqs[i] = engine.Request{Samples: w.Samples, State: st, Final: w.Final, Bias: graph}
	}
	return handles, reqs, nil
}

func (s *Server) run(ctx context.Context, reqs []engine.Request) ([]engine.DecoderState, error) {
	if !s.info.Concurrent {
		s.decodeMu.Lock()
		defer s.decodeMu.Unlock()
	}
	return s.rec.DecodeBatch(ctx, reqs)
}

func (s *Server) evictLocked(now time.Time) {
	for handle, held := range s.states {
		if now.Sub(held.seen) > s.opts.StateTTL {
			delete(s.states, handle)
			s.logger.Debug("evicted idle decoder state", "handle", handle)
		}
	}
}
