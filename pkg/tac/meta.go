package tac

import (
	"fmt"
	"strings"

	"github.com/minic-lang/minic/pkg/ctypes"
)

// ArrayMeta records the dimensions and element layout of an array symbol.
type ArrayMeta struct {
	Name       string // full variable name
	Dims       []int  // dimension sizes from outer to inner
	ElemSize   int    // element size in bytes
	Base       ctypes.DataType
	StructName string // set when Base is Struct
}

// NewArrayMeta returns metadata for an array of the given shape.
func NewArrayMeta(name string, dims []int, base ctypes.DataType, elemSize int) *ArrayMeta {
	return &ArrayMeta{Name: name, Dims: dims, ElemSize: elemSize, Base: base}
}

// TotalElems returns the total number of elements across all dimensions.
func (m *ArrayMeta) TotalElems() int {
	total := 1
	for _, d := range m.Dims {
		total *= d
	}
	return total
}

// Stride returns the number of elements skipped when the index at the
// given dimension is incremented by one.
func (m *ArrayMeta) Stride(dim int) int {
	if dim >= len(m.Dims) {
		return 0
	}
	stride := 1
	for i := dim + 1; i < len(m.Dims); i++ {
		stride *= m.Dims[i]
	}
	return stride
}

func (m *ArrayMeta) String() string {
	var b strings.Builder
	b.WriteString(m.Name)
	for _, d := range m.Dims {
		fmt.Fprintf(&b, "[%d]", d)
	}
	return b.String()
}

// StructField is a struct member with its declared type and layout offset.
type StructField struct {
	Name   string
	Type   ctypes.Type
	Offset int
}

// StructMeta is the complete metadata of a struct type definition.
type StructMeta struct {
	Name      string
	Fields    []StructField
	TotalSize int
}

// ComputeSize lays out fields in declaration order with no padding and
// records the resulting total size.
func (m *StructMeta) ComputeSize() {
	off := 0
	for i := range m.Fields {
		m.Fields[i].Offset = off
		off += m.Fields[i].Type.Size()
	}
	m.TotalSize = off
}

// Field returns the metadata of the named field.
func (m *StructMeta) Field(name string) (*StructField, bool) {
	for i := range m.Fields {
		if m.Fields[i].Name == name {
			return &m.Fields[i], true
		}
	}
	return nil, false
}

// HasField reports whether the struct declares the named field.
func (m *StructMeta) HasField(name string) bool {
	_, ok := m.Field(name)
	return ok
}
