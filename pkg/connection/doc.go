// Package connection retries connection attempts with exponential backoff.
//
// DefaultBackoff starts at 200 milliseconds and doubles after every failed
// attempt up to 5 seconds. A random share of up to a quarter of the base
// delay is added so that clients restarted together do not retry in
// lockstep:
//
//	delay = base + random(0, base * 0.25)
//
// Errors wrapped with Permanent, such as certificate problems, end the
// retry loop at once.
package connection
