// Package alerts evaluates threshold rules against incoming fit snapshots and
// delivers fire/resolve notifications to Slack, Teams or generic HTTP webhooks.
//
// Rules are keyed per (rule, source, qubit). A rule fires once, stays firing
// until its condition clears, and cannot re-fire within its cooldown.
package alerts
