// Package sessiongw adapts the external browser-automation session gateway
// to typed Go calls.
//
// The adapter is strict about which failures are errors. Transport failures
// and non-2xx responses surface as *GatewayError so callers can distinguish
// "the gateway said no" from "the gateway is unreachable". QR fetches never
// error at all: a missing QR is an expected state (the session may already be
// paired), so both QR methods return a tagged QRResult instead.
//
// StartSession is the one stateful operation. An in-flight guard collapses
// concurrent starts for the same tenant into a single gateway call, and a
// status probe short-circuits starts against already-connected sessions.
package sessiongw
