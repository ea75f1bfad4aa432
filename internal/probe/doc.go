// Package probe implements the network checks a monitoring chain runs
// against its target.
//
// Targets are addressed by URL scheme:
//
//	http://host/path, https://host/path   HTTP GET, healthy on 2xx/3xx
//	tcp://host:port, host:port            TCP connect, healthy if accepted
//
// A reachable target that answers badly is unhealthy (false, nil). A check
// that could not be carried out at all is a probe fault (error).
package probe
