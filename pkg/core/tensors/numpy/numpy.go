// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package numpy reads and writes tensors in NumPy's .npy and .npz file formats.
//
// It is used to load the parameters of a program and to save them back after passes have rewritten them.
// Only little-endian C-order (row-major) arrays are supported.
//
// NumPy has no layout tag: rank-4 tensors read are tagged layout.NCHW (see tensors.FromShape),
// and callers that know better should use Tensor.SetLayout.
package numpy

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/irpass/pkg/core/shapes"
	"github.com/gomlx/irpass/pkg/core/tensors"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const npyMagic = "\x93NUMPY"

// FromNpyFile reads a .npy file and returns a tensors.Tensor.
func FromNpyFile(filePath string) (*tensors.Tensor, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open .npy file %q", filePath)
	}
	defer func() { _ = file.Close() }()
	return FromNpyReader(file)
}

// FromNpyReader reads a .npy file from an io.Reader and returns a tensors.Tensor.
func FromNpyReader(r io.Reader) (*tensors.Tensor, error) {
	magic := make([]byte, len(npyMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, errors.Wrapf(err, "failed to read magic string")
	}
	if string(magic) != npyMagic {
		return nil, errors.Errorf("invalid .npy file format: magic string mismatch")
	}

	version := make([]byte, 2)
	if _, err := io.ReadFull(r, version); err != nil {
		return nil, errors.Wrapf(err, "failed to read version")
	}
	var headerLen int
	switch {
	case version[0] == 1:
		var lenBytes [2]byte
		if _, err := io.ReadFull(r, lenBytes[:]); err != nil {
			return nil, errors.Wrapf(err, "failed to read header length (v1.0)")
		}
		headerLen = int(binary.LittleEndian.Uint16(lenBytes[:]))
	case version[0] >= 2:
		var lenBytes [4]byte
		if _, err := io.ReadFull(r, lenBytes[:]); err != nil {
			return nil, errors.Wrapf(err, "failed to read header length (v2.0+)")
		}
		headerLen = int(binary.LittleEndian.Uint32(lenBytes[:]))
		if headerLen > 1<<20 {
			return nil, errors.Errorf("header length %d is too large", headerLen)
		}
	default:
		return nil, errors.Errorf("unsupported .npy version: %d.%d", version[0], version[1])
	}

	headerBytes := make([]byte, headerLen)
	if _, err := io.ReadFull(r, headerBytes); err != nil {
		return nil, errors.Wrapf(err, "failed to read header")
	}
	// Example: "{'descr': '<f4', 'fortran_order': False, 'shape': (1, 2, 3), }"
	dtypeStr, dims, fortranOrder, err := parseNpyHeader(string(headerBytes))
	if err != nil {
		return nil, errors.WithMessage(err, "failed to parse .npy header")
	}
	if fortranOrder && len(dims) > 1 {
		return nil, errors.Errorf(".npy files in Fortran order are not supported")
	}
	if strings.HasPrefix(dtypeStr, ">") {
		return nil, errors.Errorf("big-endian .npy files (%q) are not supported", dtypeStr)
	}
	dtype, err := npyDTypeToDType(dtypeStr)
	if err != nil {
		return nil, err
	}
	if slices.Contains(dims, 0) {
		return nil, errors.Errorf(".npy file with empty shape %v not supported", dims)
	}

	tensor := tensors.FromShape(shapes.Make(dtype, dims...))
	tensor.MutableBytes(func(data []byte) {
		_, err = io.ReadFull(r, data)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read tensor data (expected %d bytes)", tensor.Memory())
	}
	return tensor, nil
}

// parseNpyHeader extracts dtype, shape, and fortran_order from the .npy header string.
func parseNpyHeader(header string) (dtype string, dims []int, fortranOrder bool, err error) {
	mDescr := reDescr.FindStringSubmatch(header)
	if len(mDescr) < 2 {
		err = errors.Errorf("could not find 'descr' in header: %q", header)
		return
	}
	dtype = mDescr[1]

	mFortran := reFortran.FindStringSubmatch(header)
	if len(mFortran) < 2 {
		err = errors.Errorf("could not find 'fortran_order' in header: %q", header)
		return
	}
	fortranOrder = mFortran[1] == "True"

	mShape := reShape.FindStringSubmatch(header)
	if len(mShape) < 2 {
		err = errors.Errorf("could not find 'shape' in header: %q", header)
		return
	}
	dims = []int{}
	for _, p := range strings.Split(mShape[1], ",") {
		p = strings.TrimSpace(p)
		if p == "" { // Trailing comma like (10,), or scalar ().
			continue
		}
		val, pErr := strconv.Atoi(p)
		if pErr != nil {
			err = errors.Wrapf(pErr, "invalid shape value %q in header", p)
			return
		}
		dims = append(dims, val)
	}
	return
}

var (
	reDescr   = regexp.MustCompile(`'descr'\s*:\s*'([^']*)'`)
	reFortran = regexp.MustCompile(`'fortran_order'\s*:\s*(True|False)`)
	reShape   = regexp.MustCompile(`'shape'\s*:\s*\(([^)]*)\)`)
)

// npyDTypes maps NumPy type codes (without the byte order prefix) to dtypes.
var npyDTypes = map[string]dtypes.DType{
	"b1":  dtypes.Bool,
	"?":   dtypes.Bool,
	"i1":  dtypes.Int8,
	"u1":  dtypes.Uint8,
	"i2":  dtypes.Int16,
	"u2":  dtypes.Uint16,
	"i4":  dtypes.Int32,
	"u4":  dtypes.Uint32,
	"i8":  dtypes.Int64,
	"u8":  dtypes.Uint64,
	"f2":  dtypes.Float16,
	"f4":  dtypes.Float32,
	"f8":  dtypes.Float64,
	"c8":  dtypes.Complex64,
	"c16": dtypes.Complex128,
}

// npyDTypeToDType converts a NumPy dtype string (e.g. "<f4") to a dtypes.DType.
func npyDTypeToDType(npyType string) (dtypes.DType, error) {
	code := strings.TrimLeft(npyType, "<>=|")
	if dtype, found := npyDTypes[code]; found {
		return dtype, nil
	}
	return dtypes.InvalidDType, errors.Errorf("unsupported NumPy dtype: %s", npyType)
}

// dtypeToNpy converts a dtypes.DType to a little-endian NumPy dtype string.
func dtypeToNpy(dtype dtypes.DType) (string, error) {
	if dtype == dtypes.Bool {
		return "|b1", nil
	}
	for code, npyDType := range npyDTypes {
		if npyDType == dtype && code != "?" && code != "b1" {
			return "<" + code, nil
		}
	}
	return "", errors.Errorf("dtype %s has no NumPy equivalent", dtype)
}

// ToNpyWriter serializes a tensors.Tensor to an io.Writer in .npy (version 1.0) format.
func ToNpyWriter(tensor *tensors.Tensor, w io.Writer) error {
	shape := tensor.Shape()
	descr, err := dtypeToNpy(shape.DType)
	if err != nil {
		return err
	}
	var shapeTuple string
	switch shape.Rank() {
	case 0:
		shapeTuple = "()"
	case 1:
		shapeTuple = fmt.Sprintf("(%d,)", shape.Dimensions[0])
	default:
		dimsStr := make([]string, shape.Rank())
		for i, dim := range shape.Dimensions {
			dimsStr[i] = strconv.Itoa(dim)
		}
		shapeTuple = "(" + strings.Join(dimsStr, ", ") + ")"
	}

	// Preamble (magic + version + header length = 10 bytes) plus header must be a multiple of 16,
	// and the header ends with a newline.
	var headerBuf bytes.Buffer
	_, _ = fmt.Fprintf(&headerBuf, "{'descr': '%s', 'fortran_order': False, 'shape': %s, }", descr, shapeTuple)
	for (10+headerBuf.Len()+1)%16 != 0 {
		headerBuf.WriteByte(' ')
	}
	headerBuf.WriteByte('\n')

	var preamble bytes.Buffer
	preamble.WriteString(npyMagic)
	preamble.Write([]byte{1, 0})
	_ = binary.Write(&preamble, binary.LittleEndian, uint16(headerBuf.Len()))
	if _, err := w.Write(preamble.Bytes()); err != nil {
		return errors.Wrapf(err, "failed to write .npy preamble")
	}
	if _, err := w.Write(headerBuf.Bytes()); err != nil {
		return errors.Wrapf(err, "failed to write .npy header")
	}
	var writeErr error
	tensor.ConstBytes(func(data []byte) {
		_, writeErr = w.Write(data)
	})
	return errors.Wrapf(writeErr, "failed to write tensor data")
}

// ToNpyFile serializes a tensors.Tensor to a .npy file.
func ToNpyFile(tensor *tensors.Tensor, filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return errors.Wrapf(err, "failed to create .npy file %q", filePath)
	}
	if err = ToNpyWriter(tensor, file); err != nil {
		_ = file.Close()
		return err
	}
	return errors.Wrapf(file.Close(), "failed to close %q", filePath)
}

// FromNpzFile reads a .npz file and returns a map of tensor names to tensors.Tensor.
func FromNpzFile(filePath string) (map[string]*tensors.Tensor, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open .npz file %q", filePath)
	}
	defer func() { _ = file.Close() }()
	info, err := file.Stat()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to stat .npz file %q", filePath)
	}
	return FromNpzReader(file, info.Size())
}

// FromNpzReader reads a .npz archive (a zip of .npy files), returning a map of tensor names to tensors.Tensor.
// Entries that are not .npy files are ignored.
func FromNpzReader(r io.ReaderAt, size int64) (map[string]*tensors.Tensor, error) {
	zipReader, err := zip.NewReader(r, size)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create zip reader for .npz")
	}
	results := make(map[string]*tensors.Tensor)
	for _, f := range zipReader.File {
		cleanPath := path.Clean(f.Name)
		if path.IsAbs(cleanPath) || strings.HasPrefix(cleanPath, "..") {
			return nil, errors.Errorf("invalid path in .npz archive: %q (normalized to %q)", f.Name, cleanPath)
		}
		if !strings.HasSuffix(f.Name, ".npy") {
			klog.V(2).Infof("skipping %q in .npz archive", f.Name)
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, errors.Wrapf(err, "failed to open %q within .npz", f.Name)
		}
		tensor, err := FromNpyReader(rc)
		_ = rc.Close()
		if err != nil {
			return nil, errors.WithMessagef(err, "failed to read tensor %q from .npz", f.Name)
		}
		results[strings.TrimSuffix(f.Name, ".npy")] = tensor
	}
	return results, nil
}

// ToNpzWriter serializes a map of tensors to an io.Writer as a .npz archive.
// Entries are written sorted by name, so the output is deterministic.
func ToNpzWriter(tensorsMap map[string]*tensors.Tensor, w io.Writer) error {
	zipWriter := zip.NewWriter(w)
	names := make([]string, 0, len(tensorsMap))
	for name := range tensorsMap {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		fileWriter, err := zipWriter.Create(name + ".npy")
		if err != nil {
			return errors.Wrapf(err, "failed to create %q in .npz archive", name)
		}
		if err := ToNpyWriter(tensorsMap[name], fileWriter); err != nil {
			return errors.WithMessagef(err, "failed to write tensor %q to .npz archive", name)
		}
	}
	return errors.Wrap(zipWriter.Close(), "failed to finish .npz archive")
}

// ToNpzFile serializes a map of tensors to a .npz file.
func ToNpzFile(tensorsMap map[string]*tensors.Tensor, filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return errors.Wrapf(err, "failed to create .npz file %q", filePath)
	}
	if err = ToNpzWriter(tensorsMap, file); err != nil {
		_ = file.Close()
		return err
	}
	return errors.Wrapf(file.Close(), "failed to close %q", filePath)
}
