// Package message builds outbound envelopes and queues them for the caller.
//
// Every envelope has the shape
//
//	{"event":"<name>","params":<JSON|null>,"data":<JSON>}
//
// Send encodes params and data exactly once. Data that is already JSON
// text is passed as json.RawMessage and spliced verbatim; encoding
// validates it, so a caller can no longer produce an envelope with an
// invalid data field.
package message
