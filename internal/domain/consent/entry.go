package consent

import (
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// Kind is the JSON type of a field value.
type Kind uint8

// Field kinds.
const (
	KindString Kind = iota
	KindNumber
	KindBool
	KindNull
	KindRaw
)

// Reserved entry keys.
const (
	KeyEvent = "event"
	KeyTS    = "ts"
)

// tsLayout matches the millisecond ISO-8601 timestamps written by browsers.
const tsLayout = "2006-01-02T15:04:05.000Z"

// Field is one key/value pair of a usage entry. Value holds the textual
// form: the string itself, the number literal, "true"/"false", or raw JSON.
type Field struct {
	Key   string
	Value string
	Kind  Kind
}

// String returns a string field.
func String(key, value string) Field { return Field{Key: key, Value: value, Kind: KindString} }

// Int returns a numeric field.
func Int(key string, value int) Field {
	return Field{Key: key, Value: strconv.Itoa(value), Kind: KindNumber}
}

// Bool returns a boolean field.
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: strconv.FormatBool(value), Kind: KindBool}
}

// Entry is one usage log record. Entries are heterogeneous: the key set
// depends on the event, and field order is preserved.
type Entry []Field

// NewEntry builds {event, ts, fields...}.
func NewEntry(event string, ts time.Time, fields ...Field) Entry {
	e := make(Entry, 0, len(fields)+2)
	e = append(e, String(KeyEvent, event), String(KeyTS, ts.UTC().Format(tsLayout)))
	return append(e, fields...)
}

// Get returns the field named key.
func (e Entry) Get(key string) (Field, bool) {
	for _, f := range e {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

// Event returns the event name or "" when absent.
func (e Entry) Event() string {
	f, _ := e.Get(KeyEvent)
	return f.Value
}

func (e Entry) encode(enc *jx.Encoder) {
	enc.ObjStart()
	for _, f := range e {
		enc.FieldStart(f.Key)
		switch f.Kind {
		case KindNumber:
			enc.Num(jx.Num(f.Value))
		case KindBool:
			enc.Bool(f.Value == "true")
		case KindNull:
			enc.Null()
		case KindRaw:
			enc.Raw([]byte(f.Value))
		default:
			enc.Str(f.Value)
		}
	}
	enc.ObjEnd()
}

// EncodeLog serializes entries as a JSON array, keeping field order.
func EncodeLog(entries []Entry) []byte {
	var enc jx.Encoder
	enc.ArrStart()
	for _, e := range entries {
		e.encode(&enc)
	}
	enc.ArrEnd()
	return enc.Bytes()
}

// DecodeLog parses a stored usage log. Anything but an array of objects is
// an error.
func DecodeLog(data []byte) ([]Entry, error) {
	d := jx.DecodeBytes(data)
	if d.Next() != jx.Array {
		return nil, errors.New("usage log is not an array")
	}
	var entries []Entry
	if err := d.Arr(func(d *jx.Decoder) error {
		if d.Next() != jx.Object {
			return errors.New("usage entry is not an object")
		}
		var e Entry
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			f, err := decodeField(d, key)
			if err != nil {
				return errors.Wrapf(err, "field %q", key)
			}
			e = append(e, f)
			return nil
		}); err != nil {
			return err
		}
		entries = append(entries, e)
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "decode usage log")
	}
	return entries, nil
}

func decodeField(d *jx.Decoder, key string) (Field, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		return String(key, s), err
	case jx.Number:
		n, err := d.Num()
		return Field{Key: key, Value: n.String(), Kind: KindNumber}, err
	case jx.Bool:
		b, err := d.Bool()
		return Bool(key, b), err
	case jx.Null:
		return Field{Key: key, Kind: KindNull}, d.Null()
	default:
		raw, err := d.Raw()
		return Field{Key: key, Value: raw.String(), Kind: KindRaw}, err
	}
}
