// Package metrics holds the process-wide expvar counters served at /debug/vars.
package metrics

import "expvar"

var (
	accounts = expvar.NewMap("accounts")

	Registrations   = newCounter("registrations")
	LoginsSucceeded = newCounter("logins_succeeded")
	LoginsFailed    = newCounter("logins_failed")
	TokensRejected  = newCounter("tokens_rejected")
)

func newCounter(name string) *expvar.Int {
	v := new(expvar.Int)
	accounts.Set(name, v)
	return v
}
