package alerts

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/relaxlab/qexp/pkg/types"
	"github.com/relaxlab/qexp/server/internal/config"
)

const (
	defaultCooldown   = 15 * time.Minute
	maxHistoryLen     = 200
	recentWindowHours = 1
)

// Alert states.
const (
	StateFiring   = "firing"
	StateResolved = "resolved"
)

// Alert represents a single alert event produced by the rule engine.
type Alert struct {
	ID         string     `json:"id"`
	RuleName   string     `json:"rule_name"`
	SourceID   string     `json:"source_id"`
	Qubit      int        `json:"qubit"`
	Severity   string     `json:"severity"`
	Message    string     `json:"message"`
	Value      float64    `json:"value"`
	FiredAt    time.Time  `json:"fired_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	State      string     `json:"state"`
}

type rule struct {
	config.AlertRule
	cond condition
}

// Engine evaluates alert rules against incoming fit snapshots and delivers
// webhook notifications when rules fire or resolve.
//
// Engine is safe for concurrent use.
type Engine struct {
	rules    []rule
	webhooks []config.WebhookConfig

	mu        sync.Mutex
	active    map[string]*Alert    // key: "ruleName:source/qubit"
	lastFire  map[string]time.Time // last fire time per key (for cooldown)
	history   []*Alert             // recently resolved alerts
	client    *http.Client
	now       func() time.Time
	deliverFn func(*Alert)
	onEvent   func(a *Alert)
}

// New creates an Engine from the server alert configuration. Rules whose
// condition does not parse are rejected. An Engine with no rules is valid;
// Evaluate becomes a no-op.
func New(cfg config.AlertsConfig) (*Engine, error) {
	e := &Engine{
		webhooks: cfg.Webhooks,
		active:   make(map[string]*Alert),
		lastFire: make(map[string]time.Time),
		client:   &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
	}
	e.deliverFn = func(a *Alert) { go e.deliver(a) }
	for _, r := range cfg.Rules {
		c, err := parseCondition(r.Condition)
		if err != nil {
			return nil, fmt.Errorf("alerts: rule %q: %w", r.Name, err)
		}
		if r.Cooldown <= 0 {
			r.Cooldown = defaultCooldown
		}
		if r.Severity == "" {
			r.Severity = "warning"
		}
		e.rules = append(e.rules, rule{AlertRule: r, cond: c})
	}
	return e, nil
}

// OnEvent registers fn to be called with a copy of every fired or resolved
// alert. Must be called before Evaluate is used concurrently.
func (e *Engine) OnEvent(fn func(a *Alert)) {
	e.onEvent = fn
}

// Evaluate tests all configured rules against snap.
// Alerts that fire are stored and webhook delivery is triggered asynchronously.
// Alerts that were firing but whose condition is now false are resolved.
// A rule that cannot judge snap (fit fields on an unfitted snapshot) leaves
// any existing alert untouched.
func (e *Engine) Evaluate(snap *types.FitSnapshot) {
	if len(e.rules) == 0 {
		return
	}

	now := e.now()
	for _, r := range e.rules {
		fires, value, ok := r.cond.eval(snap)
		if !ok {
			continue
		}
		key := r.Name + ":" + snap.Key()

		var event *Alert
		e.mu.Lock()
		if fires {
			if _, firing := e.active[key]; !firing && now.Sub(e.lastFire[key]) >= r.Cooldown {
				a := &Alert{
					ID:       uuid.NewString(),
					RuleName: r.Name,
					SourceID: snap.SourceID,
					Qubit:    snap.Qubit,
					Severity: r.Severity,
					Value:    value,
					Message:  message(r, snap, value),
					FiredAt:  now,
					State:    StateFiring,
				}
				e.active[key] = a
				e.lastFire[key] = now
				cp := *a
				event = &cp
			}
		} else if a, firing := e.active[key]; firing {
			resolved := now
			a.State = StateResolved
			a.ResolvedAt = &resolved
			delete(e.active, key)

			e.history = append(e.history, a)
			if len(e.history) > maxHistoryLen {
				e.history = e.history[len(e.history)-maxHistoryLen:]
			}
			cp := *a
			event = &cp
		}
		e.mu.Unlock()

		if event == nil {
			continue
		}
		if event.State == StateFiring {
			slog.Warn("alert fired",
				"rule", r.Name,
				"source", snap.SourceID,
				"qubit", snap.Qubit,
				"value", value,
				"severity", r.Severity,
			)
		} else {
			slog.Info("alert resolved",
				"rule", r.Name,
				"source", snap.SourceID,
				"qubit", snap.Qubit,
			)
		}
		if e.onEvent != nil {
			e.onEvent(event)
		}
		e.deliverFn(event)
	}
}

// Active returns copies of all currently firing alerts plus any alerts
// resolved within the past hour, sorted newest first.
func (e *Engine) Active() []*Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now().Add(-recentWindowHours * time.Hour)
	out := make([]*Alert, 0, len(e.active))

	for _, a := range e.active {
		cp := *a
		out = append(out, &cp)
	}
	for _, a := range e.history {
		if a.ResolvedAt != nil && a.ResolvedAt.After(cutoff) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].FiredAt.After(out[j].FiredAt)
	})
	return out
}

// FiringCount returns the number of alerts currently firing.
func (e *Engine) FiringCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active)
}

func message(r rule, snap *types.FitSnapshot, value float64) string {
	if r.cond.field == "state" {
		return fmt.Sprintf("[%s] %s fired on %s: state is %s",
			r.Severity, r.Name, snap.Key(), snap.State)
	}
	return fmt.Sprintf("[%s] %s fired on %s: %s (value %.2f)",
		r.Severity, r.Name, snap.Key(), r.Condition, value)
}
