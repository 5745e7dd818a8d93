// Package doctor runs readiness diagnostics for config, models, the remote
// engine, and the event brokers.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"slices"
	"strings"
	"time"

	"github.com/rbright/hark/internal/config"
	"github.com/rbright/hark/internal/engine"
	"github.com/rbright/hark/internal/engine/remote"
	"github.com/segmentio/kafka-go"
)

const probeTimeout = 2 * time.Second

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes config, model, and connectivity checks for a loaded config.
func Run(ctx context.Context, loaded config.Loaded) Report {
	cfg := loaded.Config
	checks := []Check{checkConfig(loaded), checkBackend(cfg.Engine.Backend)}

	isRemote := cfg.Engine.Backend == remote.Backend
	if isRemote {
		checks = append(checks, checkRemote(ctx, cfg.Engine))
	}

	checks = append(checks,
		checkModel("online", isRemote, func() (config.Model, error) {
			m, _, err := cfg.Online.Resolve("online")
			return m, err
		}),
		checkModel("offline", isRemote, func() (config.Model, error) {
			m, _, err := cfg.Offline.Resolve()
			return m, err
		}),
		checkKeywords(cfg.Keywords, isRemote),
		checkLocalOnly("tts", isRemote, func() (config.Model, error) {
			m, _, err := cfg.TTS.Resolve()
			return m, err
		}),
		checkLocalOnly("denoiser", isRemote, cfg.Denoiser.Resolve),
	)

	if addr := strings.TrimSpace(cfg.Metrics.Addr); addr != "" {
		checks = append(checks, checkListenAddr("metrics.addr", addr))
	}
	if cfg.Events.Enabled {
		for _, broker := range cfg.Events.Brokers {
			checks = append(checks, checkBroker(ctx, broker))
		}
	}

	return Report{Checks: checks}
}

func checkConfig(loaded config.Loaded) Check {
	if !loaded.Exists {
		return Check{Name: "config", Pass: true, Message: fmt.Sprintf("%q not found; using defaults", loaded.Path)}
	}
	return Check{Name: "config", Pass: true, Message: fmt.Sprintf("loaded %q", loaded.Path)}
}

func checkBackend(backend string) Check {
	available := engine.Backends()
	if !slices.Contains(available, backend) {
		return Check{Name: "engine.backend", Pass: false, Message: fmt.Sprintf("%q is not compiled in (available: %s)", backend, strings.Join(available, ", "))}
	}
	return Check{Name: "engine.backend", Pass: true, Message: backend}
}

// checkRemote probes the remote engine's health service.
func checkRemote(ctx context.Context, cfg config.EngineConfig) Check {
	timeout := time.Duration(cfg.DialTimeoutMS) * time.Millisecond
	if err := remote.Ping(ctx, cfg.Address, timeout); err != nil {
		return Check{Name: "engine.remote", Pass: false, Message: err.Error()}
	}
	return Check{Name: "engine.remote", Pass: true, Message: fmt.Sprintf("serving at %s", cfg.Address)}
}

// checkModel resolves a recognizer section and verifies its files. With the
// remote backend the files live on the server; only the local tokens matter.
func checkModel(section string, isRemote bool, resolve func() (config.Model, error)) Check {
	m, err := resolve()
	if errors.Is(err, config.ErrNoModel) {
		return Check{Name: section, Pass: true, Message: "not configured"}
	}
	if err != nil {
		return Check{Name: section, Pass: false, Message: err.Error()}
	}

	files := m.Files
	if isRemote {
		files = nil
		if strings.TrimSpace(m.Tokens) != "" {
			files = []string{m.Tokens}
		}
	}
	if err := config.CheckFiles(files); err != nil {
		return Check{Name: section, Pass: false, Message: err.Error()}
	}
	return Check{Name: section, Pass: true, Message: fmt.Sprintf("%s (%d files)", m.Type, len(files))}
}

func checkKeywords(cfg config.KeywordConfig, isRemote bool) Check {
	check := checkModel("keywords", isRemote, func() (config.Model, error) {
		m, _, err := cfg.Model.Resolve("keywords.model")
		return m, err
	})
	if !check.Pass || check.Message == "not configured" {
		return check
	}
	if strings.TrimSpace(cfg.File) == "" && strings.TrimSpace(cfg.Buf) == "" {
		return Check{Name: "keywords", Pass: false, Message: "keywords.file or keywords.buf must be set"}
	}
	if cfg.File != "" {
		if err := config.CheckFiles([]string{cfg.File}); err != nil {
			return Check{Name: "keywords", Pass: false, Message: err.Error()}
		}
	}
	return check
}

// checkLocalOnly covers sessions the remote backend does not serve.
func checkLocalOnly(section string, isRemote bool, resolve func() (config.Model, error)) Check {
	if isRemote {
		if _, err := resolve(); errors.Is(err, config.ErrNoModel) {
			return Check{Name: section, Pass: true, Message: "not configured"}
		}
		return Check{Name: section, Pass: false, Message: "not available with engine.backend=remote"}
	}
	return checkModel(section, false, resolve)
}

func checkListenAddr(name, addr string) Check {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return Check{Name: name, Pass: false, Message: err.Error()}
	}
	return Check{Name: name, Pass: true, Message: addr}
}

// checkBroker opens and closes one Kafka connection.
func checkBroker(ctx context.Context, broker string) Check {
	name := "events.broker " + broker
	dialer := &kafka.Dialer{Timeout: probeTimeout, DualStack: true}
	conn, err := dialer.DialContext(ctx, "tcp", broker)
	if err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("dial failed: %v", err)}
	}
	defer conn.Close()

	brokers, err := conn.Brokers()
	if err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("metadata request failed: %v", err)}
	}
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("reachable (%d brokers in cluster)", len(brokers))}
}
