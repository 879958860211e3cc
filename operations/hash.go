package operations

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"reflect"

	"github.com/hashlock-labs/htlc-swap/pkg/logger"
)

// IsSerializable reports whether v survives a JSON round trip. Unexported struct fields,
// functions and channels are lost on disk and make v unserializable.
func IsSerializable(lggr logger.Logger, v any) bool {
	if v == nil {
		return true
	}
	if !serializableType(reflect.TypeOf(v), map[reflect.Type]bool{}) {
		lggr.Errorw("Data is not serializable", "type", reflect.TypeOf(v).String())
		return false
	}
	if _, err := json.Marshal(v); err != nil {
		lggr.Errorw("Data is not serializable", "type", reflect.TypeOf(v).String(), "error", err)
		return false
	}

	return true
}

var (
	jsonMarshaler = reflect.TypeFor[json.Marshaler]()
	textMarshaler = reflect.TypeFor[interface{ MarshalText() ([]byte, error) }]()
)

func serializableType(t reflect.Type, seen map[reflect.Type]bool) bool {
	if seen[t] {
		return true
	}
	seen[t] = true

	if t.Implements(jsonMarshaler) || t.Implements(textMarshaler) ||
		reflect.PointerTo(t).Implements(jsonMarshaler) || reflect.PointerTo(t).Implements(textMarshaler) {
		return true
	}

	switch t.Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer, reflect.Complex64, reflect.Complex128:
		return false
	case reflect.Pointer, reflect.Slice, reflect.Array:
		return serializableType(t.Elem(), seen)
	case reflect.Map:
		return serializableType(t.Key(), seen) && serializableType(t.Elem(), seen)
	case reflect.Struct:
		for i := range t.NumField() {
			f := t.Field(i)
			if !f.IsExported() {
				return false
			}
			if f.Tag.Get("json") == "-" {
				continue
			}
			if !serializableType(f.Type, seen) {
				return false
			}
		}
	}

	return true
}

// uniqueHash identifies a run by its definition and input.
func uniqueHash(def Definition, input any) (string, error) {
	b, err := json.Marshal(struct {
		ID      string `json:"id"`
		Version string `json:"version"`
		Input   any    `json:"input"`
	}{def.ID, def.Version.String(), input})
	if err != nil {
		return "", err
	}
	// normalize through a generic value so typed and decoded inputs hash alike
	var generic any
	if err = json.Unmarshal(b, &generic); err != nil {
		return "", err
	}
	if b, err = json.Marshal(generic); err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)

	return hex.EncodeToString(sum[:]), nil
}
