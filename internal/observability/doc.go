// Package observability provides the behavioral event log, activity
// metrics, alerting, Slack notification, Prometheus collectors and the zap
// logger constructor. Events persist as JSON Lines and metrics are derived
// on demand from the log.
package observability
