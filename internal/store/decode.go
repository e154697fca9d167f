package store

import (
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/rotisserie/eris"
)

// Decode converts a record into a typed value using mapstructure tags.
// Numeric and boolean columns are weakly typed so that SQLite integers,
// Postgres int4 and JSON float64 all land in the same Go field.
func Decode[T any](rec Record) (T, error) {
	var out T
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
		),
	})
	if err != nil {
		return out, eris.Wrap(err, "store: new decoder")
	}
	if err := dec.Decode(map[string]any(rec)); err != nil {
		return out, eris.Wrap(err, "store: decode record")
	}
	return out, nil
}

// DecodeAll decodes every record.
func DecodeAll[T any](recs []Record) ([]T, error) {
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		v, err := Decode[T](rec)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
