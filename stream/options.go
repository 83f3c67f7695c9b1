package stream

// TransformFunc rewrites a value before it is encoded. It receives the key
// under which the value is being emitted ("" for the root, the stringified
// index for sequence elements) and the value itself. It returns the value to
// encode in its place and whether to keep it at all; a dropped value is
// omitted from keyed collections and encoded as null everywhere else.
type TransformFunc func(key string, value any) (any, bool)

// maxIndentWidth caps the indentation unit, whether given as a width or as
// a literal string.
const maxIndentWidth = 10

var indentSpaces = []byte("          ")

type options struct {
	indent    []byte
	allowKeys map[string]struct{}
	transform TransformFunc
}

// An Option configures an Encoder.
type Option func(*options)

// WithIndent enables pretty-printing with the given number of spaces per
// nesting level. Widths are clamped to 1..10; anything below 1 disables
// indentation.
func WithIndent(width int) Option {
	return func(o *options) {
		if width < 1 {
			o.indent = nil
			return
		}
		if width > maxIndentWidth {
			width = maxIndentWidth
		}
		o.indent = indentSpaces[:width]
	}
}

// WithIndentString enables pretty-printing with a literal indentation unit,
// clipped to 10 bytes. An empty string disables indentation.
func WithIndentString(unit string) Option {
	return func(o *options) {
		if unit == "" {
			o.indent = nil
			return
		}
		if len(unit) > maxIndentWidth {
			unit = unit[:maxIndentWidth]
		}
		o.indent = []byte(unit)
	}
}

// WithKeys restricts keyed-collection output to the given keys. The root
// key "" is always implicitly allowed and sequence elements are unaffected.
func WithKeys(keys []string) Option {
	return func(o *options) {
		o.allowKeys = make(map[string]struct{}, len(keys)+1)
		o.allowKeys[""] = struct{}{}
		for _, k := range keys {
			o.allowKeys[k] = struct{}{}
		}
	}
}

// WithTransform installs a value transform hook, applied to every value
// after its own EncodeValue conversion (see Valuer) and before
// classification.
func WithTransform(fn TransformFunc) Option {
	return func(o *options) {
		o.transform = fn
	}
}

func (o *options) keyAllowed(key string) bool {
	if o.allowKeys == nil {
		return true
	}
	_, ok := o.allowKeys[key]
	return ok
}
