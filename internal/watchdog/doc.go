// Package watchdog keeps tenant messaging sessions alive.
//
// A single recurring tick enumerates every tenant with a live messaging
// provider and probes its session through the provider registry, one tenant
// at a time. Each probe updates an in-memory health record; sustained
// disconnection triggers cooldown-bounded reconnect attempts, and a streak
// crossing the alert threshold fires exactly one alert. Past the failure
// budget the tenant is considered stalled: probing continues but automatic
// recovery stops until an operator forces a reconnect.
package watchdog
