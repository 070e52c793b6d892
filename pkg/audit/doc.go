// Package audit records append-only audit events for subscription state
// changes that happen without a user action, most importantly automatic
// downgrades. Events carry the prior plan and reason so support can answer
// "why did my limits change" without archaeology.
package audit
