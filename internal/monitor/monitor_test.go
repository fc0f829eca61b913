package monitor

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/flemzord/odoo-mcp/internal/odoo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeChecker struct {
	mu      sync.Mutex
	results []odoo.ServerInfo
	calls   int
	check   func(ctx context.Context) odoo.ServerInfo
}

func (f *fakeChecker) CheckConnection(ctx context.Context) odoo.ServerInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.check != nil {
		return f.check(ctx)
	}
	info := f.results[min(f.calls, len(f.results)-1)]
	f.calls++
	return info
}

func up() odoo.ServerInfo {
	return odoo.ServerInfo{Connected: true, ServerVersion: "17.0", Database: "db"}
}

func down() odoo.ServerInfo {
	return odoo.ServerInfo{Connected: false, Database: "db", Error: "connection refused"}
}

func TestMonitor_CheckRecordsStatus(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	gauge := NewConnectionGauge(reg)
	m := New(&fakeChecker{results: []odoo.ServerInfo{up(), down()}}, time.Second, nil, gauge)

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ticks := 0
	m.now = func() time.Time {
		ticks++
		return base.Add(time.Duration(ticks) * 10 * time.Millisecond)
	}

	if _, ok := m.Last(); ok {
		t.Fatal("Last() reported a status before any check")
	}

	st := m.Check(t.Context())
	if !st.Connected || st.ServerVersion != "17.0" || st.Latency != 10*time.Millisecond {
		t.Errorf("first status = %+v", st)
	}
	if got := testutil.ToFloat64(gauge); got != 1 {
		t.Errorf("connection_up = %v, want 1", got)
	}

	m.Check(t.Context())
	last, ok := m.Last()
	if !ok || last.Connected || last.Error != "connection refused" {
		t.Errorf("Last() = %+v, %v", last, ok)
	}
	if got := testutil.ToFloat64(gauge); got != 0 {
		t.Errorf("connection_up = %v, want 0", got)
	}
	if m.Checks() != 2 {
		t.Errorf("Checks() = %d, want 2", m.Checks())
	}
}

func TestMonitor_LogsTransitionsOnly(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	checker := &fakeChecker{results: []odoo.ServerInfo{up(), up(), down(), down(), up()}}
	m := New(checker, 0, logger, nil)

	for range 5 {
		m.Check(t.Context())
	}

	out := buf.String()
	for msg, want := range map[string]int{
		`msg="odoo reachable"`:       1,
		`msg="odoo unreachable"`:     1,
		`msg="odoo reachable again"`: 1,
	} {
		if got := strings.Count(out, msg); got != want {
			t.Errorf("%s logged %d times, want %d\n%s", msg, got, want, out)
		}
	}
}

func TestMonitor_FirstCheckDown(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	m := New(&fakeChecker{results: []odoo.ServerInfo{down()}}, 0, slog.New(slog.NewTextHandler(&buf, nil)), nil)
	m.Check(t.Context())
	if !strings.Contains(buf.String(), "level=WARN") || !strings.Contains(buf.String(), "connection refused") {
		t.Errorf("log = %s", buf.String())
	}
}

func TestMonitor_AppliesTimeout(t *testing.T) {
	t.Parallel()

	checker := &fakeChecker{check: func(ctx context.Context) odoo.ServerInfo {
		deadline, ok := ctx.Deadline()
		if !ok || time.Until(deadline) > 50*time.Millisecond {
			return odoo.ServerInfo{Error: "no deadline"}
		}
		<-ctx.Done()
		return odoo.ServerInfo{Error: ctx.Err().Error()}
	}}
	m := New(checker, 20*time.Millisecond, nil, nil)

	st := m.Check(t.Context())
	if st.Connected || st.Error != context.DeadlineExceeded.Error() {
		t.Errorf("status = %+v, want deadline exceeded", st)
	}
}

func TestMonitor_RunsAsJob(t *testing.T) {
	t.Parallel()

	m := New(&fakeChecker{results: []odoo.ServerInfo{up()}}, 0, nil, nil)
	s := NewScheduler(nil)
	if err := s.RegisterJob(DefaultSchedule, m); err != nil {
		t.Fatal(err)
	}
	s.Start()
	if !s.Trigger(m.Name()) {
		t.Fatal("Trigger() = false")
	}
	if err := s.Stop(t.Context()); err != nil {
		t.Fatal(err)
	}
	if st, ok := m.Last(); !ok || !st.Connected {
		t.Errorf("Last() = %+v, %v", st, ok)
	}
}

func TestMonitor_CancelledCheckNotRecorded(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	reg := prometheus.NewRegistry()
	gauge := NewConnectionGauge(reg)
	checker := &fakeChecker{check: func(ctx context.Context) odoo.ServerInfo {
		if err := ctx.Err(); err != nil {
			return odoo.ServerInfo{Connected: false, Error: err.Error()}
		}
		return up()
	}}
	m := New(checker, time.Second, logger, gauge)

	m.Check(t.Context())

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	if st := m.Check(ctx); st.Connected {
		t.Fatalf("cancelled check = %+v, want not connected", st)
	}

	last, ok := m.Last()
	if !ok || !last.Connected {
		t.Errorf("Last() = %+v, want the previous connected status", last)
	}
	if m.Checks() != 1 {
		t.Errorf("Checks() = %d, want 1", m.Checks())
	}
	if got := testutil.ToFloat64(gauge); got != 1 {
		t.Errorf("connection_up = %v, want 1", got)
	}
	if strings.Contains(buf.String(), "unreachable") {
		t.Errorf("cancelled check logged an outage: %s", buf.String())
	}
}
