// Package protocol implements the RCP wire layer: framed messages with a
// one-byte command identifier, the CBOR payloads exchanged during the
// handshake, the pre-shared-key challenge response, and a framed
// connection with independently locked read and write halves.
//
// The client core treats payloads as opaque bytes and routes only on
// [Frame.Command].  Everything in this package is deliberately free of
// client state so it can be reused by test servers.
package protocol
