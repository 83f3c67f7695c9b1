package stream

import "reflect"

type frameKind uint8

const (
	frameObject frameKind = iota
	frameArray
	frameBytes
	frameRecords
	frameDeferred
	frameLiteral
)

// A frame is one unit of pending traversal work. Frames form a singly
// linked stack through parent; only the active path is ever materialized,
// so memory is bounded by nesting depth, not by graph size. Each kind uses
// only the fields it needs.
type frame struct {
	kind   frameKind
	parent *frame

	// cycle guard identity, zero when the value cannot cycle
	id ident

	// cursor and separator state for object, array and records frames
	idx     int
	emitted bool

	entries []entry       // frameObject: key/value snapshot
	seq     reflect.Value // frameArray
	n       int           // frameArray: length, fixed at push

	lit []byte // frameLiteral: text still to be emitted

	def  Deferred // frameDeferred
	key  string   // frameDeferred: key the resolved value re-enters under
	bsrc ByteSource
	rsrc RecordSource

	// suspension state for deferred and source frames
	firstRead bool
	awaiting  bool
}
