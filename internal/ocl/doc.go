// Package ocl is a small client for the concept endpoints of an Open
// Concept Lab style terminology API.
//
// It lists concepts by following paginated "next" links, fetches concept
// detail, and replaces a concept's external identifier. Every request
// carries the configured token and is bounded by the client timeout. Any
// non-2xx response is returned as a *StatusError so callers can abort.
package ocl
