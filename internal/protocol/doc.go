// Package protocol owns the wire contract between an embedded frame and its host.
//
// Ownership boundary:
// - envelope shape and JSON parse/encode primitives
// - response-slot error decoding
// - error taxonomy shared by channel/handshake/handler
package protocol
