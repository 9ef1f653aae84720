// Package playbook executes automated response playbooks: for each threat
// category a fixed, ordered list of response actions is run against the
// originating alert's context. Actions are side-effecting stubs here; real
// integrations (firewall, paging) sit behind the same action set.
package playbook

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/securewatch/securewatch/internal/detection"
	"github.com/securewatch/securewatch/internal/models"
)

// Action is a closed set of response action kinds. Each variant carries its
// own parameter shape and is matched exhaustively in the engine; adding a
// kind is a compile-time change, not a runtime table edit.
type Action interface {
	Name() string
}

// BlockAddress blocks the source address at the network edge.
type BlockAddress struct {
	Duration time.Duration
}

// AlertOperator pages the on-call operator.
type AlertOperator struct {
	Priority string
}

// LogIncident records an incident entry for the alert.
type LogIncident struct{}

// RateLimitAddress throttles further attempts from the source address.
type RateLimitAddress struct {
	MaxAttempts int
}

// EnableChallenge turns on a login challenge for affected endpoints.
type EnableChallenge struct{}

// IsolateHost cuts the host off from the network.
type IsolateHost struct{}

// CaptureTraffic starts a bounded packet capture for the source address.
type CaptureTraffic struct {
	Duration time.Duration
}

func (BlockAddress) Name() string     { return "block_ip" }
func (AlertOperator) Name() string    { return "alert_admin" }
func (LogIncident) Name() string      { return "log_incident" }
func (RateLimitAddress) Name() string { return "rate_limit_ip" }
func (EnableChallenge) Name() string  { return "enable_captcha" }
func (IsolateHost) Name() string      { return "isolate_host" }
func (CaptureTraffic) Name() string   { return "capture_traffic" }

// playbooks maps each threat category to its ordered response actions.
// detection.ThreatUnknown deliberately has no entry.
var playbooks = map[string][]Action{
	detection.ThreatSQLInjection: {
		BlockAddress{Duration: time.Hour},
		AlertOperator{Priority: "high"},
		LogIncident{},
	},
	detection.ThreatBruteForce: {
		RateLimitAddress{MaxAttempts: 3},
		EnableChallenge{},
		AlertOperator{Priority: "medium"},
	},
	detection.ThreatDataExfiltration: {
		BlockAddress{Duration: 2 * time.Hour},
		IsolateHost{},
		AlertOperator{Priority: "critical"},
		CaptureTraffic{Duration: 5 * time.Minute},
	},
	detection.ThreatPortScan: {
		BlockAddress{Duration: 30 * time.Minute},
		AlertOperator{Priority: "medium"},
	},
}

// Execution statuses.
const (
	StatusCompleted  = "completed"
	StatusNoPlaybook = "no_playbook_found"
	StatusFailed     = "failed"
)

// ExecutionContext carries the alert data shared by every action in a run.
type ExecutionContext struct {
	SourceIP string
	AlertID  string
	RawLog   string
	LogType  string
}

// Config bounds playbook execution.
type Config struct {
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{Timeout: 30 * time.Second}
}

// Engine runs response playbooks. Stateless and safe for concurrent use.
type Engine struct {
	timeout time.Duration
	logger  *zap.Logger

	// execFn is the action executor, replaceable in tests to simulate
	// integration failures.
	execFn func(Action, ExecutionContext) (string, map[string]string, error)
}

// NewEngine creates a playbook engine.
func NewEngine(cfg Config, logger *zap.Logger) *Engine {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	e := &Engine{timeout: cfg.Timeout, logger: logger}
	e.execFn = e.dispatch
	return e
}

// HasPlaybook reports whether a playbook exists for the category.
func (e *Engine) HasPlaybook(threatType string) bool {
	_, ok := playbooks[threatType]
	return ok
}

// Execute runs every action of the category's playbook in order and returns
// one result per action. A failing action is captured as failed and the
// remaining actions still run; execution always completes with a full list.
func (e *Engine) Execute(ctx context.Context, threatType string, ec ExecutionContext) models.PlaybookResult {
	actions, ok := playbooks[threatType]
	if !ok {
		return models.PlaybookResult{
			ThreatType: threatType,
			Status:     StatusNoPlaybook,
			ExecutedAt: time.Now().UTC(),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	results := make([]models.ActionResult, 0, len(actions))
	for _, action := range actions {
		results = append(results, e.runAction(ctx, action, ec))
	}

	return models.PlaybookResult{
		ThreatType: threatType,
		Status:     StatusCompleted,
		Results:    results,
		ExecutedAt: time.Now().UTC(),
	}
}

// runAction executes one action, converting any error or panic into a
// failed result instead of aborting the run.
func (e *Engine) runAction(ctx context.Context, action Action, ec ExecutionContext) (res models.ActionResult) {
	defer func() {
		if r := recover(); r != nil {
			res = models.ActionResult{
				Action: action.Name(),
				Status: StatusFailed,
				Error:  fmt.Sprintf("action panicked: %v", r),
			}
			e.logger.Error("Playbook action panicked",
				zap.String("action", action.Name()),
				zap.Any("panic", r),
			)
		}
	}()

	if err := ctx.Err(); err != nil {
		return models.ActionResult{
			Action: action.Name(),
			Status: StatusFailed,
			Error:  err.Error(),
		}
	}

	status, details, err := e.execFn(action, ec)
	if err != nil {
		e.logger.Warn("Playbook action failed",
			zap.String("action", action.Name()),
			zap.String("alert_id", ec.AlertID),
			zap.Error(err),
		)
		return models.ActionResult{
			Action: action.Name(),
			Status: StatusFailed,
			Error:  err.Error(),
		}
	}

	e.logger.Info("Playbook action executed",
		zap.String("action", action.Name()),
		zap.String("status", status),
		zap.String("source_ip", ec.SourceIP),
		zap.String("alert_id", ec.AlertID),
	)
	return models.ActionResult{
		Action:  action.Name(),
		Status:  status,
		Details: details,
	}
}

// dispatch matches the action set exhaustively. The stubs report their
// inputs and a completion status; real integrations replace the bodies.
func (e *Engine) dispatch(action Action, ec ExecutionContext) (string, map[string]string, error) {
	switch a := action.(type) {
	case BlockAddress:
		return "blocked", map[string]string{
			"ip":       ec.SourceIP,
			"duration": a.Duration.String(),
		}, nil
	case AlertOperator:
		return "sent", map[string]string{
			"priority": a.Priority,
		}, nil
	case LogIncident:
		return "logged", map[string]string{
			"alert_id": ec.AlertID,
		}, nil
	case RateLimitAddress:
		return "applied", map[string]string{
			"ip":           ec.SourceIP,
			"max_attempts": fmt.Sprintf("%d", a.MaxAttempts),
		}, nil
	case EnableChallenge:
		return "enabled", nil, nil
	case IsolateHost:
		return "isolated", map[string]string{
			"ip": ec.SourceIP,
		}, nil
	case CaptureTraffic:
		return "capturing", map[string]string{
			"duration": a.Duration.String(),
		}, nil
	default:
		return "", nil, fmt.Errorf("unhandled action kind %T", action)
	}
}
