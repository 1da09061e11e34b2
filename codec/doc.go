// Package codec implements the result wire format shared by the host
// executor and the in-sandbox worker.
//
// A script's designated result is one of a closed set of value kinds:
// a table, a named series, a numeric array, or a stringified fallback.
// The codec encodes an ExecuteResult (including an optional rendered
// figure) into the JSON response payload and decodes it back. Encoding
// and decoding round-trip exactly for the three typed kinds; the
// fallback kind is lossy by design.
package codec
