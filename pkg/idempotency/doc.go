// Package idempotency provides atomic claim-once semantics for event
// references, used to de-duplicate payment-gateway webhook redeliveries
// before they reach the subscription state machine.
//
// Three implementations cover the usual deployments: Postgres (durable, the
// default for money-guarding decisions), Redis (cheap and shared across
// instances), and an in-memory map for tests.
package idempotency
