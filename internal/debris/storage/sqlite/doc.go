// Package sqlite contains the SQLite repository for detection sessions
// and their detections.
//
// All database read/write operations belong here rather than in the
// layer packages (l1frames through l4classify). The DetectionStore
// attaches to a running pipeline as a Sink.
package sqlite
