package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the governance service.
type Metrics struct {
	DangerActionsCreated  *prometheus.CounterVec
	DangerActionsResolved *prometheus.CounterVec
	DangerActionsExecuted prometheus.Counter
	AuditEntriesWritten   prometheus.Counter
	AuditWriteFailures    prometheus.Counter
	PermissionDenials     prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		DangerActionsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "famledger_danger_actions_created_total",
			Help: "Total number of critical action requests created, by action kind",
		}, []string{"action_kind"}),
		DangerActionsResolved: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "famledger_danger_actions_resolved_total",
			Help: "Total number of critical action requests resolved, by outcome (approved/rejected)",
		}, []string{"outcome"}),
		DangerActionsExecuted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "famledger_danger_actions_executed_total",
			Help: "Total number of critical action requests executed",
		}),
		AuditEntriesWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "famledger_audit_entries_written_total",
			Help: "Total number of audit log entries written",
		}),
		AuditWriteFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "famledger_audit_write_failures_total",
			Help: "Total number of audit log writes that failed and were swallowed",
		}),
		PermissionDenials: promauto.NewCounter(prometheus.CounterOpts{
			Name: "famledger_permission_denials_total",
			Help: "Total number of permission checks that denied access",
		}),
	}
}
