package ingress

import "github.com/apache/arrow/go/arrow"

// CheckedDataType walks dt, spending one unit of lim's budget for each
// nested type it descends into and one more for each constituent
// field of that nested type. Primitive Arrow types, the time and
// interval unit enums, the union-mode enum, and the volatility enum
// are terminal: they consume the token without recursing.
func CheckedDataType(dt arrow.DataType, lim *Limiter) error {
	if dt == nil {
		lim.NoRecursion()
		return nil
	}

	// arrow.NestedType is the stable interface implemented by every
	// composite Arrow type this library version models (struct, list,
	// fixed-size list, map, union). A pinned arrow-go snapshot that
	// predates a given composite kind (e.g. run-end-encoding, added to
	// the Arrow format after this module's pinned commit) simply does
	// not satisfy NestedType, and the type falls through to the
	// terminal path below — a version-bound limitation noted in
	// DESIGN.md: such a type is treated as a leaf, its children are not
	// visited, and it spends no budget of its own.
	if nested, ok := dt.(arrow.NestedType); ok {
		sub, err := lim.Sub()
		if err != nil {
			return err.(*Error).WithContext(dt.Name())
		}
		for _, f := range nested.Fields() {
			fieldLim, err := sub.Sub()
			if err != nil {
				return err.(*Error).WithContext(dt.Name())
			}
			if err := CheckedField(f, fieldLim); err != nil {
				if ie, ok := err.(*Error); ok {
					return ie.WithContext(dt.Name())
				}
				return err
			}
		}
		return nil
	}

	if dict, ok := dt.(*arrow.DictionaryType); ok {
		sub, err := lim.Sub()
		if err != nil {
			return err.(*Error).WithContext("dictionary")
		}
		if err := CheckedDataType(dict.IndexType, sub); err != nil {
			return err
		}
		if err := CheckedDataType(dict.ValueType, sub); err != nil {
			return err
		}
		return nil
	}

	// Every other DataType is terminal: primitive numeric/string/binary
	// types, time/interval/date types, and the various unit enums
	// embedded in them.
	lim.NoRecursion()
	return nil
}

// CheckedField validates a Field's name against the identifier-length
// budget and recurses into its DataType.
func CheckedField(f arrow.Field, lim *Limiter) error {
	if err := lim.CheckIdentifier(f.Name); err != nil {
		return err.(*Error).WithContext("field name")
	}
	if err := CheckedMetadata(f.Metadata, lim); err != nil {
		return err
	}
	if err := CheckedDataType(f.Type, lim); err != nil {
		return err.(*Error).WithContext(f.Name)
	}
	return nil
}

// CheckedMetadata validates every key/value pair in md: keys as
// identifiers, values as auxiliary strings.
func CheckedMetadata(md arrow.Metadata, lim *Limiter) error {
	keys := md.Keys()
	values := md.Values()
	for i, k := range keys {
		if err := lim.CheckIdentifier(k); err != nil {
			return err.(*Error).WithContext("metadata key")
		}
		if i < len(values) {
			if err := lim.CheckAuxString(values[i]); err != nil {
				return err.(*Error).WithContext("metadata value")
			}
		}
	}
	return nil
}
