// Package export writes detection results to files: the session's
// detections.json, a compact CBOR record stream suited to downlink, and
// the session metadata document.
package export
