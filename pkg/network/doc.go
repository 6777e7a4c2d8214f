// Package network sets up the point-to-point veth link between a
// container's network namespace and the host, and tears it down again.
//
// It shells out to ip and nsenter rather than speaking netlink directly,
// the same way the rest of this codebase prefers a well-known external
// command over a bespoke wire protocol when the command is ubiquitous on
// the target host (see pkg/parent's re-exec strategy through the unshare
// command for the same tradeoff elsewhere).
//
// Failure here is never fatal to the container: callers are expected to
// log a warning and continue without network access.
package network
