// Package billing wires the subscription lifecycle and usage metering into
// an HTTP surface: a status endpoint, a usage snapshot endpoint, a payment
// confirmation webhook, and a plan/quota gate middleware for protected
// routes.
//
// The module is transport glue only. All business rules live in
// pkg/subscription, pkg/usage and friends; handlers translate between HTTP
// and those packages and map domain errors to status codes. The Gate
// middleware meters a feature on successful responses, so a handler that
// fails does not burn quota.
package billing
