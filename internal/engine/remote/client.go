// Package remote runs recognition on another process over gRPC. The client
// registers as the "remote" recognizer backend; Server hosts any local
// recognizer for it.
package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rbright/hark/internal/engine"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/structpb"
)

// Backend is the registry name of the client.
const Backend = "remote"

const defaultDialTimeout = 3 * time.Second

func init() {
	engine.RegisterRecognizer(Backend, Open)
}

// Recognizer forwards decode batches to a Server. Decoder states live on the
// server; the client only holds their handles and latest hypotheses.
type Recognizer struct {
	conn   *grpc.ClientConn
	info   engine.Info
	mode   engine.Mode
	logger *slog.Logger
}

// Open dials spec.Address with plaintext credentials.
func Open(ctx context.Context, spec engine.Spec) (engine.Recognizer, error) {
	return Dial(ctx, spec)
}

// Dial connects, waits for readiness, and fetches the server's model info.
// The server must host a model of the same mode.
func Dial(ctx context.Context, spec engine.Spec, opts ...grpc.DialOption) (*Recognizer, error) {
	conn, err := connect(ctx, spec.Address, spec.DialTimeout, opts...)
	if err != nil {
		return nil, err
	}

	logger := spec.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	out := new(structpb.Struct)
	if err := conn.Invoke(ctx, infoMethod, encodeInfoRequest(spec.Mode), out); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("fetch remote recognizer info: %w", err)
	}
	info, mode := decodeInfo(out)
	if spec.Mode != "" && mode != spec.Mode {
		_ = conn.Close()
		return nil, fmt.Errorf("remote recognizer at %s serves mode %q, want %q", spec.Address, mode, spec.Mode)
	}
	// The server serializes calls into its own backend.
	info.Concurrent = true

	logger.Info("remote recognizer connected",
		"address", spec.Address,
		"mode", mode,
		"sample_rate", info.SampleRate,
		"chunk_samples", info.ChunkSamples,
	)

	return &Recognizer{conn: conn, info: info, mode: mode, logger: logger}, nil
}

func connect(ctx context.Context, address string, timeout time.Duration, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, errors.New("remote engine address is empty")
	}
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}

	dialOpts := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(address, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("dial remote engine %q: %w", address, err)
	}

	readyCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	conn.Connect()
	if err := waitForReady(readyCtx, conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("wait for remote engine readiness: %w", err)
	}
	return conn, nil
}

// waitForReady blocks until conn is Ready, shuts down, or ctx ends.
func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for state := conn.GetState(); state != connectivity.Ready; state = conn.GetState() {
		if state == connectivity.Shutdown {
			return errors.New("connection shut down before becoming ready")
		}
		if !conn.WaitForStateChange(ctx, state) {
			return fmt.Errorf("still %s: %w", state, context.Cause(ctx))
		}
	}
	return nil
}

func (r *Recognizer) Info() engine.Info {
	return r.info
}

func (r *Recognizer) NewState() engine.DecoderState {
	return &state{}
}

func (r *Recognizer) DecodeBatch(ctx context.Context, reqs []engine.Request) ([]engine.DecoderState, error) {
	wire := make([]wireRequest, len(reqs))
	for i, req := range reqs {
		st, ok := req.State.(*state)
		if !ok {
			return nil, fmt.Errorf("batch item %d carries a foreign decoder state %T", i, req.State)
		}
		wire[i] = wireRequest{
			Handle:  st.handle,
			Samples: req.Samples,
			Final:   req.Final,
			Bias:    req.Bias.Entries(),
		}
	}

	out := new(structpb.Struct)
	if err := r.conn.Invoke(ctx, decodeBatchMethod, encodeRequests(wire), out); err != nil {
		return nil, fmt.Errorf("remote decode batch: %w", err)
	}

	states := decodeStates(out)
	if len(states) != len(reqs) {
		return nil, fmt.Errorf("remote decode batch returned %d states for %d requests", len(states), len(reqs))
	}

	next := make([]engine.DecoderState, len(states))
	for i, ws := range states {
		next[i] = &state{handle: ws.Handle, hyp: ws.Hyp, frames: ws.Frames, trailing: ws.Trailing}
	}
	return next, nil
}

func (r *Recognizer) Close() error {
	return r.conn.Close()
}

// state mirrors a server-side decoder state. An empty handle asks the server
// for a fresh one.
type state struct {
	handle   string
	hyp      engine.Hypothesis
	frames   int
	trailing int
}

func (s *state) Hypothesis() engine.Hypothesis { return s.hyp.Clone() }
func (s *state) NumFrames() int                { return s.frames }
func (s *state) TrailingSilenceFrames() int    { return s.trailing }

// Ping checks the server's health service for the recognizer.
func Ping(ctx context.Context, address string, timeout time.Duration, opts ...grpc.DialOption) error {
	conn, err := connect(ctx, address, timeout, opts...)
	if err != nil {
		return err
	}
	defer conn.Close()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: serviceName})
	if err != nil {
		return fmt.Errorf("remote engine health check: %w", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("remote engine is %s", resp.GetStatus())
	}
	return nil
}
