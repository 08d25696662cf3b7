package module

import (
	"context"
	"log/slog"
	"sync"

	"github.com/GoCodeAlone/remediation/alerts"
)

// fakePod records executed commands and returns a canned output.
type fakePod struct {
	mu       sync.Mutex
	commands []string
	output   string
	err      error
}

func (p *fakePod) Exec(_ context.Context, command string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.commands = append(p.commands, command)
	return p.output, p.err
}

func (p *fakePod) calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.commands...)
}

// fakeResolver serves pods from a map keyed by "namespace/name".
type fakeResolver struct {
	pods map[string]*fakePod
	err  error
	refs []alerts.PodRef
	mu   sync.Mutex
}

func (r *fakeResolver) ResolvePod(_ context.Context, ref alerts.PodRef) (PodExecutor, error) {
	r.mu.Lock()
	r.refs = append(r.refs, ref)
	r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	p, ok := r.pods[ref.String()]
	if !ok {
		return nil, nil
	}
	return p, nil
}

// recordHandler is a slog.Handler that keeps every record.
type recordHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *recordHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r.Clone())
	return nil
}

func (h *recordHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordHandler) WithGroup(string) slog.Handler      { return h }

func (h *recordHandler) atLevel(level slog.Level) []slog.Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []slog.Record
	for _, r := range h.records {
		if r.Level == level {
			out = append(out, r)
		}
	}
	return out
}

func newRecordingLogger() (*slog.Logger, *recordHandler) {
	h := &recordHandler{}
	return slog.New(h), h
}

func podAlert(name string, labels map[string]string) *alerts.Alert {
	l := map[string]string{"alertname": name}
	for k, v := range labels {
		l[k] = v
	}
	return &alerts.Alert{Status: alerts.StatusFiring, Labels: l}
}
