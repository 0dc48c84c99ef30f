package shell

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/HomePanel/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/HomePanel/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/HomePanel/backend/internal/providers/terminal"
	"github.com/GriffinCanCode/HomePanel/backend/internal/shared/id"
)

// setupLine quiets the remote shell: no colors, no prompt, no echo.
const setupLine = "export TERM=dumb PS1='' PS2='' PROMPT_COMMAND=''; unset LS_COLORS; stty -echo 2>/dev/null\n"

const statusMarker = "__hp_status__"

// statusProbe reports the previous command's exit status and the working
// directory on one marker line. The echoed probe itself carries the
// literal format verbs and so never matches statusLine.
var statusProbe = "printf '\\n" + statusMarker + ":%d:%s\\n' \"$?\" \"$PWD\"\n"

var statusLine = regexp.MustCompile(statusMarker + `:(\d+):([^\r\n]*)\r?\n`)

// Options tunes the read loop and session lifetime.
type Options struct {
	ExecTimeout   time.Duration
	SettleDelay   time.Duration
	QuiescenceGap time.Duration
	PollInterval  time.Duration
	ProbeTimeout  time.Duration
	IdleTimeout   time.Duration
}

// OptionsFromConfig maps environment config onto manager options.
func OptionsFromConfig(cfg config.ShellConfig) Options {
	return Options{
		ExecTimeout:   cfg.ExecTimeout,
		SettleDelay:   cfg.SettleDelay,
		QuiescenceGap: cfg.QuiescenceGap,
		PollInterval:  cfg.PollInterval,
		ProbeTimeout:  cfg.ProbeTimeout,
		IdleTimeout:   cfg.IdleTimeout,
	}
}

// Manager turns a stateless request/response API into long-lived
// interactive shells: it opens channels, runs commands on them, and
// reconstructs output, exit status, directory and prompt.
type Manager struct {
	dialer   terminal.Dialer
	registry *Registry
	opts     Options
	logger   *zap.Logger
	metrics  *monitoring.Metrics
	now      func() time.Time
}

// NewManager creates a session manager
func NewManager(dialer terminal.Dialer, opts Options, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		dialer:   dialer,
		registry: NewRegistry(),
		opts:     opts,
		logger:   logger,
		now:      time.Now,
	}
}

// WithMetrics attaches a metrics collector
func (m *Manager) WithMetrics(metrics *monitoring.Metrics) *Manager {
	m.metrics = metrics
	return m
}

// Connect opens a shell and registers it under a fresh session ID.
func (m *Manager) Connect(ctx context.Context, req ConnectRequest) (*ConnectResult, error) {
	req.Host = strings.TrimSpace(req.Host)
	req.Username = strings.TrimSpace(req.Username)
	if req.Host == "" || req.Username == "" || req.Secret == "" {
		return nil, fmt.Errorf("%w: host, username and secret are required", ErrInvalidRequest)
	}
	if req.Port < 0 || req.Port > 65535 {
		return nil, fmt.Errorf("%w: port %d out of range", ErrInvalidRequest, req.Port)
	}

	ch, err := m.dialer.Dial(ctx, terminal.Target{
		Host:     req.Host,
		Port:     req.Port,
		Username: req.Username,
		Secret:   req.Secret,
	})
	if err != nil {
		m.recordConnect("error")
		m.logger.Warn("Shell connect failed",
			zap.String("host", req.Host),
			zap.String("user", req.Username),
			zap.Error(err),
		)
		if errors.Is(err, terminal.ErrAuthentication) {
			return nil, fmt.Errorf("%w: %w", ErrAuthentication, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrConnect, err)
	}

	port := req.Port
	if port == 0 {
		port = 22
	}
	sess := newSession(id.NewSessionID().String(), req, port, ch, m.now())

	// Quiet the shell, discard the banner, learn the starting directory.
	if _, err := ch.Write([]byte(setupLine)); err != nil {
		_ = ch.Close()
		m.recordConnect("error")
		return nil, fmt.Errorf("%w: %w", ErrConnect, err)
	}
	bannerCtx, cancel := context.WithTimeout(ctx, m.opts.ProbeTimeout)
	m.collect(bannerCtx, ch)
	cancel()
	if _, cwd, _, ok := m.probe(ctx, ch); ok {
		sess.setDirectory(cwd)
	}

	if !m.registry.Add(sess) {
		_ = ch.Close()
		return nil, fmt.Errorf("%w: session id collision", ErrConnect)
	}
	m.recordConnect("ok")
	m.updateGauge()

	m.logger.Info("Shell session opened",
		zap.String("session_id", sess.ID),
		zap.String("host", sess.Host),
		zap.Int("port", sess.Port),
		zap.String("user", sess.Username),
	)

	return &ConnectResult{
		SessionID:        sess.ID,
		Prompt:           sess.prompt(),
		CurrentDirectory: sess.directory(),
	}, nil
}

// Execute runs one command on a session. Commands on the same session run
// one at a time. ExecTimeout bounds the whole call, the wait for an earlier
// command included. If it runs out, the partial result is returned together
// with ErrTimeout and the session stays usable.
func (m *Manager) Execute(ctx context.Context, sessionID, command string) (*ExecResult, error) {
	if strings.TrimSpace(command) == "" {
		return nil, fmt.Errorf("%w: command is required", ErrInvalidRequest)
	}
	sess, ok := m.registry.Get(sessionID)
	if !ok {
		return nil, ErrNoActiveSession
	}

	execCtx, cancel := context.WithTimeout(ctx, m.opts.ExecTimeout)
	defer cancel()

	if err := sess.acquire(execCtx); err != nil {
		return nil, fmt.Errorf("%w: waiting for previous command: %w", ErrTimeout, err)
	}
	defer sess.release()

	if sess.isClosed() {
		return nil, ErrNoActiveSession
	}

	timer := monitoring.NewTimer(m.recordCommand)
	sess.touch(m.now())

	// Drop anything a previous command printed after its read window closed.
	sess.channel.ReadAvailable()

	if _, err := sess.channel.Write([]byte(command + "\n")); err != nil {
		timer.Stop("transport_error")
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	raw, quiet := m.collect(execCtx, sess.channel)
	result := &ExecResult{ExitStatus: -1}

	if quiet {
		// A command that pauses longer than the quiescence gap keeps
		// printing while the probe waits; those bytes belong to its output.
		status, cwd, rest, ok := m.probe(execCtx, sess.channel)
		raw = append(raw, rest...)
		if ok {
			result.ExitStatus = status
			sess.setDirectory(cwd)
		} else if execCtx.Err() != nil {
			quiet = false
		}
	}
	result.Output = terminal.Normalize(statusLine.ReplaceAll(raw, nil), command)
	result.CurrentDirectory = sess.directory()
	result.Prompt = sess.prompt()
	sess.touch(m.now())

	if !quiet {
		result.Duration = timer.Stop("timeout")
		m.logger.Warn("Shell command timed out",
			zap.String("session_id", sess.ID),
			zap.Duration("ceiling", m.opts.ExecTimeout),
		)
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return result, ErrTimeout
	}

	result.Duration = timer.Stop("ok")
	m.logger.Debug("Shell command finished",
		zap.String("session_id", sess.ID),
		zap.Int("exit_status", result.ExitStatus),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

// Disconnect closes a session. A missing session yields ErrNoActiveSession
// so callers can report it without treating it as fatal.
func (m *Manager) Disconnect(sessionID string) error {
	sess, ok := m.registry.Remove(sessionID)
	if !ok {
		return ErrNoActiveSession
	}
	if err := sess.close(); err != nil {
		m.logger.Debug("Channel close returned error", zap.String("session_id", sessionID), zap.Error(err))
	}
	m.updateGauge()
	m.logger.Info("Shell session closed", zap.String("session_id", sessionID))
	return nil
}

// Status probes the transport without touching the shell. Any failure,
// including an unknown ID, reads as not connected.
func (m *Manager) Status(ctx context.Context, sessionID string) StatusResult {
	sess, ok := m.registry.Get(sessionID)
	if !ok || sess.isClosed() {
		return StatusResult{Connected: false}
	}

	probeCtx, cancel := context.WithTimeout(ctx, m.opts.ProbeTimeout)
	defer cancel()

	return StatusResult{
		Connected: sess.channel.Alive(probeCtx),
		Host:      sess.Host,
		Username:  sess.Username,
	}
}

// List returns all sessions ordered by connect time
func (m *Manager) List() []SessionInfo {
	sessions := m.registry.Snapshot()
	out := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.info())
	}
	return out
}

// Count returns the number of open sessions
func (m *Manager) Count() int {
	return m.registry.Len()
}

// Sweep closes sessions that sat idle past the idle timeout or whose
// transport died. Sessions with a command in flight are skipped.
func (m *Manager) Sweep(ctx context.Context) int {
	now := m.now()
	evicted := 0

	for _, sess := range m.registry.Snapshot() {
		if !sess.tryAcquire() {
			continue
		}

		reason := ""
		if m.opts.IdleTimeout > 0 && sess.idleSince(now) > m.opts.IdleTimeout {
			reason = "idle"
		} else {
			probeCtx, cancel := context.WithTimeout(ctx, m.opts.ProbeTimeout)
			if !sess.channel.Alive(probeCtx) {
				reason = "dead"
			}
			cancel()
		}

		if reason != "" {
			if _, ok := m.registry.Remove(sess.ID); ok {
				_ = sess.close()
				evicted++
				if m.metrics != nil {
					m.metrics.IncShellEvictions()
				}
				m.logger.Info("Shell session evicted",
					zap.String("session_id", sess.ID),
					zap.String("reason", reason),
				)
			}
		}
		sess.release()
	}

	if evicted > 0 {
		m.updateGauge()
	}
	return evicted
}

// Run sweeps on an interval until ctx is done
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Close disconnects every session
func (m *Manager) Close() {
	for _, sess := range m.registry.Snapshot() {
		if _, ok := m.registry.Remove(sess.ID); ok {
			_ = sess.close()
		}
	}
	m.updateGauge()
}

// collect polls the channel until no new bytes arrive for the quiescence
// gap, or until ctx ends the wait. quiet reports whether the output settled.
func (m *Manager) collect(ctx context.Context, ch terminal.Channel) (out []byte, quiet bool) {
	if !sleepCtx(ctx, m.opts.SettleDelay) {
		return ch.ReadAvailable(), false
	}

	lastActivity := time.Now()
	ticker := time.NewTicker(m.opts.PollInterval)
	defer ticker.Stop()

	for {
		now := time.Now()
		if chunk := ch.ReadAvailable(); len(chunk) > 0 {
			out = append(out, chunk...)
			lastActivity = now
		} else if now.Sub(lastActivity) >= m.opts.QuiescenceGap {
			return out, true
		}

		select {
		case <-ctx.Done():
			return append(out, ch.ReadAvailable()...), false
		case <-ticker.C:
		}
	}
}

// probe asks the shell for the last exit status and working directory. It
// waits at most ProbeTimeout, less if ctx ends sooner, and returns whatever
// arrived ahead of the marker line.
func (m *Manager) probe(ctx context.Context, ch terminal.Channel) (status int, cwd string, before []byte, ok bool) {
	if _, err := ch.Write([]byte(statusProbe)); err != nil {
		return -1, "", nil, false
	}

	ctx, cancel := context.WithTimeout(ctx, m.opts.ProbeTimeout)
	defer cancel()

	var buf []byte
	for {
		buf = append(buf, ch.ReadAvailable()...)
		if loc := statusLine.FindSubmatchIndex(buf); loc != nil {
			before = buf[:loc[0]]
			n, err := strconv.Atoi(string(buf[loc[2]:loc[3]]))
			if err != nil {
				return -1, "", before, false
			}
			return n, string(buf[loc[4]:loc[5]]), before, true
		}
		if !sleepCtx(ctx, m.opts.PollInterval) {
			return -1, "", append(buf, ch.ReadAvailable()...), false
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (m *Manager) recordConnect(outcome string) {
	if m.metrics != nil {
		m.metrics.RecordShellConnect(outcome)
	}
}

func (m *Manager) recordCommand(outcome string, d time.Duration) {
	if m.metrics != nil {
		m.metrics.RecordShellCommand(outcome, d)
	}
}

func (m *Manager) updateGauge() {
	if m.metrics != nil {
		m.metrics.SetShellSessions(m.registry.Len())
	}
}
