// Package metrics defines the Prometheus collectors instrumented by the
// compression engine and the worker pool. Collectors are registered with the
// default registry via promauto; exposing them is the embedding application's
// concern.
package metrics
