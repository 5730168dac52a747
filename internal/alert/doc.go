// Package alert delivers session health notifications to webhooks and
// Matrix rooms. Delivery is best-effort by contract: a sink that cannot
// deliver logs and moves on, so an alerting outage can never stall the
// health loop.
package alert
