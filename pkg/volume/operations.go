package volume

import (
	"fmt"

	"github.com/pzaffino/MONAI/pkg/geometry"
)

// OpKind identifies which forward operation a log entry records.
type OpKind int

const (
	// OpCrop marks an entry recording a region extraction
	OpCrop OpKind = iota

	// OpPad marks an entry recording added borders
	OpPad
)

// String returns the kind as a short lowercase name.
func (k OpKind) String() string {
	switch k {
	case OpCrop:
		return "crop"
	case OpPad:
		return "pad"
	}
	return fmt.Sprintf("opkind(%d)", int(k))
}

// PadWidth is the number of positions added before and after one spatial
// axis.
type PadWidth struct {
	Before int
	After  int
}

// Operation is one entry of the applied-operation log. It records a single
// crop or pad with the exact geometry used and the shape the volume had
// before, which is sufficient to undo the operation without re-deriving any
// transform parameters.
type Operation struct {
	// Kind tells whether this entry records a crop or a pad
	Kind OpKind

	// Box is the spatial region taken from the original, set on crop entries
	Box geometry.Box

	// Pad holds the widths added per spatial axis, set on pad entries
	Pad []PadWidth

	// OrigShape is the full channel-first shape before the operation
	OrigShape []int
}

// Clone returns a deep copy of the operation record.
func (op Operation) Clone() Operation {
	out := Operation{
		Kind: op.Kind,
		Box:  op.Box.Clone(),
	}
	if op.Pad != nil {
		out.Pad = make([]PadWidth, len(op.Pad))
		copy(out.Pad, op.Pad)
	}
	if op.OrigShape != nil {
		out.OrigShape = make([]int, len(op.OrigShape))
		copy(out.OrigShape, op.OrigShape)
	}
	return out
}

// PushOperation appends a record to the applied-operation log.
func (v *Volume) PushOperation(op Operation) {
	v.ops = append(v.ops, op.Clone())
}

// PopOperation removes and returns the most recent log entry.
func (v *Volume) PopOperation() (Operation, bool) {
	if len(v.ops) == 0 {
		return Operation{}, false
	}
	op := v.ops[len(v.ops)-1]
	v.ops = v.ops[:len(v.ops)-1]
	return op, true
}

// PeekOperation returns the most recent log entry without removing it.
func (v *Volume) PeekOperation() (Operation, bool) {
	if len(v.ops) == 0 {
		return Operation{}, false
	}
	return v.ops[len(v.ops)-1].Clone(), true
}

// AppliedOperations returns a copy of the log in application order, oldest
// entry first.
func (v *Volume) AppliedOperations() []Operation {
	if len(v.ops) == 0 {
		return nil
	}
	out := make([]Operation, len(v.ops))
	for i, op := range v.ops {
		out[i] = op.Clone()
	}
	return out
}

// HasOperations reports whether any forward operation is recorded.
func (v *Volume) HasOperations() bool {
	return len(v.ops) > 0
}

// ShapeMismatchError reports shapes that disagree where they must match:
// across the members of a co-registered group, or between a volume and the
// log entry being inverted.
type ShapeMismatchError struct {
	// Op names the operation that hit the mismatch
	Op string

	// Got is the offending shape
	Got []int

	// Want is the shape it was required to match
	Want []int
}

// Error implements the error interface.
func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("%s: shape %v does not match %v", e.Op, e.Got, e.Want)
}
