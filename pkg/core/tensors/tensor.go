// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package tensors implement a `Tensor`, a multidimensional array stored locally as a flat slice, tagged
// with the physical layout (see package layout) its axes are stored in.
//
// Tensors are the storage of the parameters (weights) of a program: they live in a scope.Scope, and
// graph passes may rewrite them, e.g. converting a convolution filter from NCHW to NHWC with TransDataLayout.
//
// There are various ways to construct a Tensor:
//
//   - FromShape(shape shapes.Shape): creates a tensor with the given shape, and zero values.
//
//   - FromFlatDataAndDimensions[T dtypes.Supported](data []T, dimensions ...int): creates a Tensor with the
//     given dimensions and set the flattened values with the given data. Example:
//
//     t := FromFlatDataAndDimensions([]int8{1, 2, 3, 4}, 2, 2}) // Tensor with [[1,2], [3,4]]
package tensors

import (
	"reflect"
	"sync"
	"unsafe"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/irpass/pkg/core/layout"
	"github.com/gomlx/irpass/pkg/core/shapes"
)

// Tensor represents a multidimensional array, defined by its shape (dtype and dimensions),
// the layout of its axes and its actual content stored as a flat (1D) array of values.
//
// The shape and layout are only changed by operations that also change the contents (see TransDataLayout),
// or explicitly by SetLayout.
type Tensor struct {
	// shape of the tensor.
	shape shapes.Shape

	// layout tag of the axes. Rank-4 tensors default to layout.NCHW.
	layout layout.Layout

	// mu protects flat.
	mu sync.Mutex

	// flat holds the array with actual data: a slice of the Go type for the dtype of the shape.
	flat any
}

// FromShape returns a Tensor with the given shape, with the data initialized with zeros.
//
// Rank-4 tensors are tagged with layout.NCHW, all others with layout.Undefined.
func FromShape(shape shapes.Shape) *Tensor {
	if !shape.Ok() {
		exceptions.Panicf("tensors.FromShape(%s): invalid shape", shape)
	}
	size := shape.Size()
	flatV := reflect.MakeSlice(reflect.SliceOf(shape.DType.GoType()), size, size)
	t := &Tensor{
		shape: shape.Clone(),
		flat:  flatV.Interface(),
	}
	if shape.Rank() == 4 {
		t.layout = layout.NCHW
	}
	return t
}

// FromFlatDataAndDimensions creates a tensor with the given dimensions, filled with the
// flattened values given in `data`.
// The data is copied to the Tensor.
//
// It panics if the number of elements doesn't match the dimensions.
func FromFlatDataAndDimensions[T dtypes.Supported](data []T, dimensions ...int) *Tensor {
	dtype := dtypes.FromGenericsType[T]()
	shape := shapes.Make(dtype, dimensions...)
	if len(data) != shape.Size() {
		exceptions.Panicf("FromFlatDataAndDimensions(%s): data size is %d, but dimensions size is %d",
			shape, len(data), shape.Size())
	}
	t := FromShape(shape)
	var dummy T
	if _, isInt := any(dummy).(int); isInt {
		// Stored as the sized int type (int32 or int64) of the platform.
		if len(data) > 0 {
			dataAsBytes := unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(data))), uintptr(len(data))*unsafe.Sizeof(dummy))
			t.MutableBytes(func(tensorData []byte) { copy(tensorData, dataAsBytes) })
		}
		return t
	}
	t.MutableFlatData(func(flat any) { copy(flat.([]T), data) })
	return t
}

// Shape of the tensor.
func (t *Tensor) Shape() shapes.Shape { return t.shape }

// DType of the tensor's elements.
func (t *Tensor) DType() dtypes.DType { return t.shape.DType }

// Rank of the tensor.
func (t *Tensor) Rank() int { return t.shape.Rank() }

// Size returns the number of elements of the tensor.
func (t *Tensor) Size() int { return t.shape.Size() }

// Memory returns the number of bytes used by the tensor's data.
func (t *Tensor) Memory() uintptr { return t.shape.Memory() }

// Layout returns the layout tag of the tensor's axes.
func (t *Tensor) Layout() layout.Layout { return t.layout }

// SetLayout changes the layout tag of the tensor without moving any data.
// Use it to declare the layout of data loaded from elsewhere; use TransDataLayout to convert the data.
func (t *Tensor) SetLayout(l layout.Layout) *Tensor {
	t.layout = l
	return t
}

// String implements fmt.Stringer.
func (t *Tensor) String() string {
	if t == nil {
		return "<nil tensor>"
	}
	return t.shape.String() + "@" + t.layout.String()
}

// ConstFlatData calls accessFn with the flattened data as a slice of the Go type corresponding to the DType type.
// Even scalar values have a flattened data representation of one element.
// It locks the Tensor until accessFn returns.
//
// The slice is the actual Tensor data (not a copy), and it should not be changed.
// See Tensor.MutableFlatData to access a mutable version of the flat data.
func (t *Tensor) ConstFlatData(accessFn func(flat any)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	accessFn(t.flat)
}

// MutableFlatData calls accessFn with a flat slice pointing to the Tensor data. The contents of the slice
// can be changed until accessFn returns. During this time the Tensor is locked.
func (t *Tensor) MutableFlatData(accessFn func(flat any)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	accessFn(t.flat)
}

// ConstFlatData is the generics version of Tensor.ConstFlatData.
//
// It panics if T doesn't match the tensor's dtype.
func ConstFlatData[T dtypes.Supported](t *Tensor, accessFn func(flat []T)) {
	if t.shape.DType != dtypes.FromGenericsType[T]() {
		var v T
		exceptions.Panicf("ConstFlatData[%T] is incompatible with Tensor's dtype %s -- expected dtype %s",
			v, t.shape.DType, dtypes.FromGenericsType[T]())
	}
	t.ConstFlatData(func(anyFlat any) {
		accessFn(anyFlat.([]T))
	})
}

// CopyFlatData returns a copy of the flat data of the Tensor.
//
// It panics if T doesn't match the tensor's dtype.
func CopyFlatData[T dtypes.Supported](t *Tensor) []T {
	var out []T
	ConstFlatData(t, func(flat []T) {
		out = make([]T, len(flat))
		copy(out, flat)
	})
	return out
}

// ConstBytes calls accessFn with the data as a bytes slice, which should not be changed.
// It locks the Tensor until accessFn returns.
func (t *Tensor) ConstBytes(accessFn func(data []byte)) {
	t.ConstFlatData(func(flat any) {
		accessFn(flatAsBytes(flat))
	})
}

// MutableBytes calls accessFn with the data as a bytes slice, that can be changed until accessFn returns.
// It locks the Tensor until accessFn returns.
func (t *Tensor) MutableBytes(accessFn func(data []byte)) {
	t.MutableFlatData(func(flat any) {
		accessFn(flatAsBytes(flat))
	})
}

func flatAsBytes(flat any) []byte {
	flatV := reflect.ValueOf(flat)
	if flatV.Len() == 0 {
		return nil
	}
	element0 := flatV.Index(0)
	sizeBytes := uintptr(flatV.Len()) * element0.Type().Size()
	return unsafe.Slice((*byte)(element0.Addr().UnsafePointer()), sizeBytes)
}

// Clone returns a deep copy of the tensor, including its layout tag.
func (t *Tensor) Clone() *Tensor {
	clone := FromShape(t.shape)
	clone.layout = t.layout
	t.ConstFlatData(func(flat any) {
		clone.MutableFlatData(func(cloneFlat any) {
			reflect.Copy(reflect.ValueOf(cloneFlat), reflect.ValueOf(flat))
		})
	})
	return clone
}

// Equal returns whether both tensors have the same shape, layout and contents.
func (t *Tensor) Equal(other *Tensor) bool {
	if t == other {
		return true
	}
	if t == nil || other == nil || !t.shape.Equal(other.shape) || t.layout != other.layout {
		return false
	}
	equal := false
	t.ConstBytes(func(data []byte) {
		other.ConstBytes(func(otherData []byte) {
			equal = string(data) == string(otherData)
		})
	})
	return equal
}
