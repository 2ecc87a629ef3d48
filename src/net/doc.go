// Package net implements the transports murmur nodes use to exchange
// messages, and the message bodies they carry.
//
// Every message is a JSON envelope {src, dest, body}, where body is an object
// tagged by its type field, optionally carrying msg_id and in_reply_to for
// request correlation. On the wire, each message occupies exactly one line.
//
// There are two implementations of the Transport interface:
//
// - Stdio: reads newline-delimited messages from an io.Reader (stdin) and
// writes them to an io.Writer (stdout). This is what a node uses when it runs
// under a test harness, which plays the role of the network.
//
// - Inmem: in-memory transport used only for testing. A Network ties several
// InmemTransports together and can drop messages or partition the nodes, like
// the harness does.
package net
