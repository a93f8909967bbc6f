// Package dispatch is the heart of the gateway: it gates, classifies,
// and admits inbound requests, acks the platform inside its deadline,
// and runs the responder and delivery stages on detached goroutines.
//
// Each request moves through a fixed sequence of stages: authorization,
// classification, admission, acknowledgment, context assembly, responder
// invocation, and delivery. The admission step holds the only shared
// mutable state (the in-flight key set); everything after the ack is
// per-request and runs concurrently with other dispatches. Every
// admitted request releases its key exactly once, on success and on
// every failure path, so a requester can never be wedged by an earlier
// request that died mid-flight.
package dispatch
