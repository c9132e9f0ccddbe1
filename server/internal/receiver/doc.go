// Package receiver implements transport.ResultServiceServer, the gRPC endpoint
// that accepts FitSnapshot messages from qexp-agent instances.
//
// Receiver.SendResult rejects snapshots with an empty source_id, a negative
// qubit, an unknown state, or non-finite fit parameters with
// codes.InvalidArgument, which the agent treats as permanent. Accepted
// snapshots are stored, counted in metrics and evaluated against alert rules.
// Authentication is enforced upstream by the gRPC server interceptor (see
// package auth).
package receiver
