// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"encoding/json"
	"testing"

	"github.com/gomlx/irpass/pkg/core/layout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAttribute(t *testing.T) {
	a, err := NewAttribute(float64(0.5))
	require.NoError(t, err)
	assert.Equal(t, AttrFloat, a.Type())
	assert.Equal(t, float32(0.5), a.Value())

	a, err = NewAttribute(int64(3))
	require.NoError(t, err)
	assert.Equal(t, 3, a.Value())

	a, err = NewAttribute(layout.NHWC)
	require.NoError(t, err)
	assert.Equal(t, AttrLayout, a.Type())

	_, err = NewAttribute(struct{}{})
	require.Error(t, err)

	ints := []int{1, 2}
	a = IntsAttr(ints)
	ints[0] = 7
	assert.Equal(t, []int{1, 2}, a.Value())
	assert.True(t, a.Equal(IntsAttr([]int{1, 2})))
	assert.False(t, a.Equal(IntAttr(1)))
}

func TestAttributeJSON(t *testing.T) {
	attrs := map[string]Attribute{
		"b": BoolAttr(true),
		"i": IntAttr(-2),
		"f": FloatAttr(0.25),
		"s": StringAttr("NCHW"),
		"l": IntsAttr([]int{0, 2, 3, 1}),
		"y": LayoutAttr(layout.NHWC),
	}
	data, err := json.Marshal(attrs)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"y":{"type":"layout","value":"NHWC"}`)

	var decoded map[string]Attribute
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, len(attrs))
	for name, want := range attrs {
		assert.Truef(t, want.Equal(decoded[name]), "attribute %q: want %s, got %s", name, want, decoded[name])
	}

	var a Attribute
	require.Error(t, json.Unmarshal([]byte(`{"type":"complex","value":1}`), &a))
	require.Error(t, json.Unmarshal([]byte(`{"type":"int","value":"x"}`), &a))
	require.Error(t, json.Unmarshal([]byte(`{"type":"layout","value":"NXYZ"}`), &a))
}
