// Package shipper sends FitSnapshot records to qexp-server over gRPC
// (qexp.v1.ResultService/SendResult, JSON codec from pkg/transport).
//
// Shipper.Ship() is non-blocking: results are converted and placed in an
// in-memory channel (default capacity 1000). When the buffer is full the
// oldest entry is evicted so the latest fits are always preserved.
//
// Shipper.Run() drains the buffer in a loop, reconnecting with truncated
// exponential backoff (1s→60s, ±25% jitter) on send errors. Permanent gRPC
// errors (Unauthenticated, PermissionDenied, InvalidArgument) discard the
// snapshot immediately rather than retrying.
//
// Auth: mTLS via credentials.NewTLS(), API key via gRPC metadata, or
// plaintext for local development.
package shipper
