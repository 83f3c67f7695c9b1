package stream

import (
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Valuer lets a value provide a replacement to encode in its place. The
// hook is invoked at most once per value, before any transform hook.
type Valuer interface {
	EncodeValue() any
}

// Deferred is a value that is not available yet. It is resolved exactly
// once, successfully or with an error. Done is closed on resolution;
// Result may only be called after Done is closed.
type Deferred interface {
	Done() <-chan struct{}
	Result() (any, error)
}

// Mode describes the delivery state of a Source at attachment time.
type Mode uint8

const (
	// ModePaused means the source only yields data when pulled.
	ModePaused Mode = iota
	// ModeFlowing means the source pushes data on its own account.
	ModeFlowing
	// ModeEnded means the source has completed and its data is gone.
	ModeEnded
)

// A Source is an external, pull-controlled producer. Ready returns a
// channel that is signalled when the source may have new data or has ended;
// if either is already true, the channel must be signalled immediately.
// Ended reports that no further data will ever be available.
type Source interface {
	Ready() <-chan struct{}
	Ended() bool
	Mode() Mode
}

// A ByteSource produces raw JSON text, spliced verbatim into the output.
// Pull returns the next chunk, or nil when nothing is available right now.
type ByteSource interface {
	Source
	Pull() ([]byte, error)
}

// A RecordSource produces discrete values, encoded as the elements of a
// JSON array. Pull returns the next value and true, or false when nothing
// is available right now.
type RecordSource interface {
	Source
	Pull() (any, bool, error)
}

// kind tags the classification of a single value.
type kind uint8

const (
	kindOmitted kind = iota
	kindScalar
	kindObject
	kindArray
	kindDeferred
	kindBytes
	kindRecords
)

// ident identifies a composite value for cycle detection. The zero ident
// means the value cannot take part in a cycle.
type ident struct {
	ptr uintptr
	len int
}

type entry struct {
	key   string
	value any
}

// class is the result of classifying one value: its kind plus the state the
// corresponding frame kind requires.
type class struct {
	kind    kind
	lit     []byte // kindScalar: literal bytes, valid until the next classify
	entries []entry
	seq     reflect.Value
	id      ident
	def     Deferred
	bsrc    ByteSource
	rsrc    RecordSource
}

// classify inspects one value and decides how it will be emitted. It first
// gives the value itself a chance to substitute (Valuer), then applies the
// caller's transform hook, then tags the result.
func (e *Encoder) classify(key string, v any) (class, error) {
	if vr, ok := v.(Valuer); ok {
		v = vr.EncodeValue()
	}
	if e.opts.transform != nil {
		var keep bool
		v, keep = e.opts.transform(key, v)
		if !keep {
			return class{kind: kindOmitted}, nil
		}
	}
	return e.classifyValue(key, v)
}

// classifyValue tags a value after the conversion and transform hooks have
// already run.
func (e *Encoder) classifyValue(key string, v any) (class, error) {
	switch x := v.(type) {
	case nil:
		return e.scalar(nullBytes), nil
	case Deferred:
		return class{kind: kindDeferred, def: x}, nil
	case ByteSource:
		return class{kind: kindBytes, bsrc: x}, nil
	case RecordSource:
		return class{kind: kindRecords, rsrc: x, id: sourceIdent(x)}, nil
	case bool:
		if x {
			return e.scalar(trueBytes), nil
		}
		return e.scalar(falseBytes), nil
	case string:
		e.scratch = appendString(e.scratch[:0], x)
		return e.scalar(e.scratch), nil
	case int:
		return e.intScalar(int64(x)), nil
	case int8:
		return e.intScalar(int64(x)), nil
	case int16:
		return e.intScalar(int64(x)), nil
	case int32:
		return e.intScalar(int64(x)), nil
	case int64:
		return e.intScalar(x), nil
	case uint:
		return e.uintScalar(uint64(x)), nil
	case uint8:
		return e.uintScalar(uint64(x)), nil
	case uint16:
		return e.uintScalar(uint64(x)), nil
	case uint32:
		return e.uintScalar(uint64(x)), nil
	case uint64:
		return e.uintScalar(x), nil
	case uintptr:
		return e.uintScalar(uint64(x)), nil
	case float32:
		return e.floatScalar(float64(x), 32), nil
	case float64:
		return e.floatScalar(x, 64), nil
	}

	return e.classifyReflect(key, reflect.ValueOf(v), 0)
}

// classifyReflect handles named types, composites and pointers. derefs
// bounds pointer chains so a self-referential bare pointer cannot spin the
// classifier forever; deeper structures are caught by the cycle guard.
func (e *Encoder) classifyReflect(key string, rv reflect.Value, derefs int) (class, error) {
	switch rv.Kind() {
	case reflect.Bool:
		if rv.Bool() {
			return e.scalar(trueBytes), nil
		}
		return e.scalar(falseBytes), nil
	case reflect.String:
		e.scratch = appendString(e.scratch[:0], rv.String())
		return e.scalar(e.scratch), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return e.intScalar(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return e.uintScalar(rv.Uint()), nil
	case reflect.Float32:
		return e.floatScalar(rv.Float(), 32), nil
	case reflect.Float64:
		return e.floatScalar(rv.Float(), 64), nil
	case reflect.Slice:
		return class{kind: kindArray, seq: rv, id: ident{ptr: rv.Pointer(), len: rv.Len()}}, nil
	case reflect.Array:
		// Arrays are copied by value, they cannot be on their own path.
		return class{kind: kindArray, seq: rv}, nil
	case reflect.Map:
		entries, err := mapEntries(rv)
		if err != nil {
			return class{}, err
		}
		return class{kind: kindObject, entries: entries, id: ident{ptr: rv.Pointer(), len: -1}}, nil
	case reflect.Struct:
		return class{kind: kindObject, entries: structEntries(rv)}, nil
	case reflect.Pointer:
		if rv.IsNil() {
			return e.scalar(nullBytes), nil
		}
		if rv.Elem().Kind() == reflect.Struct {
			return class{kind: kindObject, entries: structEntries(rv.Elem()), id: ident{ptr: rv.Pointer(), len: -1}}, nil
		}
		if derefs > maxPointerDepth {
			return class{}, ErrCircular
		}
		return e.classifyReflect(key, rv.Elem(), derefs+1)
	case reflect.Interface:
		if rv.IsNil() {
			return e.scalar(nullBytes), nil
		}
		return e.classifyValue(key, rv.Elem().Interface())
	case reflect.Func, reflect.Chan:
		return class{kind: kindOmitted}, nil
	default:
		return class{}, &UnsupportedTypeError{Type: rv.Type()}
	}
}

const maxPointerDepth = 1000

func (e *Encoder) scalar(lit []byte) class {
	return class{kind: kindScalar, lit: lit}
}

func (e *Encoder) intScalar(n int64) class {
	e.scratch = strconv.AppendInt(e.scratch[:0], n, 10)
	return e.scalar(e.scratch)
}

func (e *Encoder) uintScalar(n uint64) class {
	e.scratch = strconv.AppendUint(e.scratch[:0], n, 10)
	return e.scalar(e.scratch)
}

func (e *Encoder) floatScalar(f float64, bits int) class {
	e.scratch = appendFloat(e.scratch[:0], f, bits)
	return e.scalar(e.scratch)
}

func sourceIdent(src RecordSource) ident {
	rv := reflect.ValueOf(src)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return ident{ptr: rv.Pointer(), len: -1}
	}
	return ident{}
}

// mapEntries snapshots a map's keys and values. Keys are sorted so that the
// same input always encodes to the same bytes. Mutating the map while the
// encode is in flight is undefined behaviour.
func mapEntries(rv reflect.Value) ([]entry, error) {
	if rv.Type().Key().Kind() != reflect.String {
		return nil, &UnsupportedTypeError{Type: rv.Type()}
	}
	entries := make([]entry, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		entries = append(entries, entry{key: iter.Key().String(), value: iter.Value().Interface()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })
	return entries, nil
}

// structEntries snapshots a struct's exported fields in declaration order.
// A `json:"name"` tag renames the field and `json:"-"` drops it; other tag
// options are ignored.
func structEntries(rv reflect.Value) []entry {
	t := rv.Type()
	entries := make([]entry, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("json"); ok {
			tagName, _, _ := strings.Cut(tag, ",")
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		entries = append(entries, entry{key: name, value: rv.Field(i).Interface()})
	}
	return entries
}

const hexDigits = "0123456789abcdef"

// appendString appends the JSON encoding of s, escaping quotes, backslashes
// and control characters. Valid UTF-8 passes through untouched.
func appendString(b []byte, s string) []byte {
	b = append(b, '"')
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 0x20 && c != '"' && c != '\\' {
			continue
		}
		b = append(b, s[start:i]...)
		switch c {
		case '"', '\\':
			b = append(b, '\\', c)
		case '\n':
			b = append(b, '\\', 'n')
		case '\r':
			b = append(b, '\\', 'r')
		case '\t':
			b = append(b, '\\', 't')
		default:
			b = append(b, '\\', 'u', '0', '0', hexDigits[c>>4], hexDigits[c&0xF])
		}
		start = i + 1
	}
	b = append(b, s[start:]...)
	return append(b, '"')
}

// appendFloat appends the JSON encoding of f. Non-finite values have no
// JSON representation and encode as null.
func appendFloat(b []byte, f float64, bits int) []byte {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return append(b, nullBytes...)
	}
	format := byte('f')
	if abs := math.Abs(f); abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		format = 'e'
	}
	return strconv.AppendFloat(b, f, format, -1, bits)
}
