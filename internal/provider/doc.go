// Package provider selects and drives the messaging backend for a tenant.
//
// A tenant record names its provider kind; the registry maps the kind to an
// adapter and delegates. The session gateway serves the auto, hybrid, and
// gateway kinds. Legacy API kinds (twilio, vonage, dialog360, cloudapi) are
// recognized but stubbed: their operations return structured refusals so
// callers can tell "this tenant's provider is not wired up" apart from a
// genuine failure.
package provider
