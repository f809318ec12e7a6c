// Package message defines the canonical Message and Participant values for
// a support conversation and the normalizer that produces them from raw,
// schemaless log records.
//
// The remote log makes no schema guarantees: different writers use different
// field names for the same logical fields. Normalize resolves each canonical
// field through a prioritized alias table and never rejects a record; the
// fallbacks (empty text, "unknown" sender, current-instant timestamp) are
// deliberate policy so a malformed record degrades to an empty-but-visible
// message instead of a lost one.
package message
