package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "presensync", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "presensync", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	// ProfileSync counts synchronizer outcomes: noop, repaired, partial, failed, signed_out.
	ProfileSync = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "presensync", Name: "profile_sync_total", Help: "Profile synchronization runs by outcome."},
		[]string{"outcome"},
	)
	// ProfileWrites counts profile document writes by copy (private, public) and result.
	ProfileWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "presensync", Name: "profile_writes_total", Help: "Profile document writes by copy and result."},
		[]string{"copy", "result"},
	)
	AuthEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "presensync", Name: "auth_events_total", Help: "Authentication events by kind and result."},
		[]string{"event", "result"},
	)
	AttendanceMarks = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "presensync", Name: "attendance_marks_total", Help: "Attendance mark attempts by result."},
		[]string{"result"},
	)
	RoleGateRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "presensync", Name: "role_gate_rejected_total", Help: "Requests refused by the role gate, by required role."},
		[]string{"role"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(ProfileSync)
	reg.MustRegister(ProfileWrites)
	reg.MustRegister(AuthEvents)
	reg.MustRegister(AttendanceMarks)
	reg.MustRegister(RoleGateRejected)
}
