package iec104

import "strconv"

// Value is the tagged value variant of a point, keyed by the value category
// of the point's TypeID. The zero Value is a single point that is off.
type Value struct {
	kind   ValueKind
	single bool
	double DoublePoint
	step   Step
	float  float64
	count  int32
}

func SingleValue(on bool) Value {
	return Value{kind: KindSingle, single: on}
}

func DoubleValue(v DoublePoint) Value {
	return Value{kind: KindDouble, double: v}
}

func StepValue(v Step) Value {
	return Value{kind: KindStep, step: v}
}

func MeasuredValue(v float64) Value {
	return Value{kind: KindMeasured, float: v}
}

func CounterValue(v int32) Value {
	return Value{kind: KindCounter, count: v}
}

func zeroValue(kind ValueKind) Value {
	return Value{kind: kind}
}

func (v Value) Kind() ValueKind     { return v.kind }
func (v Value) Single() bool        { return v.single }
func (v Value) Double() DoublePoint { return v.double }
func (v Value) Step() Step          { return v.step }
func (v Value) Measured() float64   { return v.float }
func (v Value) Counter() int32      { return v.count }

// Native returns the value as the plain Go type of its category.
func (v Value) Native() interface{} {
	switch v.kind {
	case KindSingle:
		return v.single
	case KindDouble:
		return v.double
	case KindStep:
		return v.step
	case KindMeasured:
		return v.float
	case KindCounter:
		return v.count
	default:
		return nil
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindSingle:
		if v.single {
			return "ON"
		}
		return "OFF"
	case KindDouble:
		return v.double.String()
	case KindStep:
		return v.step.String()
	case KindMeasured:
		return strconv.FormatFloat(v.float, 'g', -1, 64)
	case KindCounter:
		return strconv.FormatInt(int64(v.count), 10)
	default:
		return "UNKNOWN"
	}
}

// Info is one consistent snapshot of a point: value, quality and the moment
// of the last mutation. Points replace it as a whole, readers never observe
// a value paired with a foreign quality.
type Info struct {
	Value     Value
	Quality   Quality
	UpdatedAt uint64 // milliseconds since epoch, 0 when never updated
}
