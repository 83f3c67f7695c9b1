// Package stream encodes an arbitrary in-memory value graph as a JSON byte
// stream, driven entirely by the consumer.
//
// The encoder is an io.ReadCloser: each Read call requests a bounded chunk
// of output and the encoder produces just enough to satisfy it, suspending
// traversal in between. This makes it practical to encode large data models
// without ever materializing the full JSON text:
//
//	enc := stream.NewEncoder(model, stream.WithIndent(2))
//	defer enc.Close()
//	if _, err := io.Copy(dst, enc); err != nil { ... }
//
// Values are traversed with an explicit frame stack instead of recursion, so
// memory is bounded by nesting depth rather than graph size. A value graph
// may contain values that are not available yet:
//
//   - a Deferred resolves exactly once at some future time and is encoded in
//     place once resolved;
//   - a ByteSource yields raw JSON text chunks which are spliced verbatim
//     into the output;
//   - a RecordSource yields discrete values which are encoded as the
//     elements of a JSON array.
//
// While such a value is pending, the encoder suspends and any Read call
// blocks until the source signals readiness. Sibling values are always
// emitted in order: a pending value blocks everything after it, it is never
// skipped or reordered.
//
// Cycles through maps, slices, pointers and record sources are detected and
// abort the encode with ErrCircular. Values reachable twice through
// non-overlapping branches are fine.
package stream
