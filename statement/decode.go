package statement

import (
	"strconv"

	"github.com/aws/aws-sdk-go-v2/service/redshiftdata/types"
)

// Kind identifies which representation a Value carries.
type Kind int

const (
	// KindNull marks a cell with no decoded representation.
	KindNull Kind = iota

	// KindString marks a string cell.
	KindString

	// KindInt marks an integer cell.
	KindInt

	// KindFloat marks a floating-point cell.
	KindFloat
)

// Value is one decoded result cell: a tagged variant over string, integer,
// float, or null. Only the field matching Kind is meaningful.
type Value struct {
	Kind  Kind
	Str   string
	Int   int64
	Float float64
}

// Row is one decoded result row, in column-declaration order.
type Row []Value

// IsNull reports whether the cell decoded to no representation.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// String renders the cell for diagnostics.
func (v Value) String() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	default:
		return ""
	}
}

// DecodeRecord converts one raw result record into a Row. Decoding is total:
// each field yields the first populated representation in the fixed priority
// order string, integer, float, and null when none applies. Boolean, blob,
// and explicit-null fields all decode to the null Value.
func DecodeRecord(fields []types.Field) Row {
	row := make(Row, len(fields))
	for i, field := range fields {
		row[i] = decodeField(field)
	}

	return row
}

// DecodeRecords converts a raw result payload into rows.
func DecodeRecords(records [][]types.Field) []Row {
	if len(records) == 0 {
		return nil
	}

	rows := make([]Row, len(records))
	for i, record := range records {
		rows[i] = DecodeRecord(record)
	}

	return rows
}

func decodeField(field types.Field) Value {
	switch f := field.(type) {
	case *types.FieldMemberStringValue:
		return Value{Kind: KindString, Str: f.Value}
	case *types.FieldMemberLongValue:
		return Value{Kind: KindInt, Int: f.Value}
	case *types.FieldMemberDoubleValue:
		return Value{Kind: KindFloat, Float: f.Value}
	default:
		return Value{}
	}
}
