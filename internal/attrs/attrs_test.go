// Copyright (c) 2026 Jess Grable <jgrable@hey.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package attrs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetDefaultsOutputKey(t *testing.T) {
	var al AttrList
	_ = al.Set("email")

	assert.Len(t, al, 1)
	assert.Equal(t, "attributes.email", al[0].Key)
	assert.Equal(t, "email", al[0].OutputKey)
	assert.True(t, al[0].Include)
}

func TestSetRootKey(t *testing.T) {
	var al AttrList
	_ = al.Set(".resource")

	assert.Len(t, al, 1)
	assert.Equal(t, "resource", al[0].Key)
	assert.Equal(t, "resource", al[0].OutputKey)
}

func TestSetExcluded(t *testing.T) {
	var al AttrList
	_ = al.Set("!.type")

	assert.Len(t, al, 1)
	assert.False(t, al[0].Include)
	assert.Equal(t, "type", al[0].Key)
}

func TestSetExplicitOutputKeyAndTransform(t *testing.T) {
	var al AttrList
	_ = al.Set("attributes.email:addr:u")

	assert.Len(t, al, 1)
	assert.Equal(t, "addr", al[0].OutputKey)
	assert.Equal(t, "u", al[0].TransformSpec)
}

func TestSetOverlaysExisting(t *testing.T) {
	var al AttrList
	_ = al.Set(".resource")
	_ = al.Set("!resource")

	// The second entry overlays the first instead of duplicating it.
	assert.Len(t, al, 1)
	assert.False(t, al[0].Include)
}

func TestSetEmptyAndStar(t *testing.T) {
	var al AttrList
	_ = al.Set("")
	assert.Len(t, al, 0)

	_ = al.Set("*")
	assert.Len(t, al, 0)
}

func TestSetGlobalTransformSpec(t *testing.T) {
	var al AttrList
	_ = al.Set("*::u,email")
	_ = al.SetGlobalTransformSpec()

	// The email attr inherits the global spec as a prefix.
	for _, a := range al {
		if a.OutputKey == "email" {
			assert.Equal(t, "u,", a.TransformSpec)
		}
	}
}

func TestTransformCase(t *testing.T) {
	a := Attr{TransformSpec: "u"}
	assert.Equal(t, "HELLO", a.Transform("hello"))

	a = Attr{TransformSpec: "l"}
	assert.Equal(t, "hello", a.Transform("HELLO"))

	// The last case transform wins.
	a = Attr{TransformSpec: "u,l"}
	assert.Equal(t, "hello", a.Transform("HeLLo"))
}

func TestTransformTruncate(t *testing.T) {
	a := Attr{TransformSpec: "5"}
	assert.Equal(t, "abcde", a.Transform("abcdefghij"))

	// Negative keeps both ends.
	a = Attr{TransformSpec: "-8"}
	assert.Equal(t, "abc..nop", a.Transform("abcdefghijklmnop"))

	// Shorter than the limit passes through.
	a = Attr{TransformSpec: "10"}
	assert.Equal(t, "abc", a.Transform("abc"))
}

func TestTransformNonString(t *testing.T) {
	a := Attr{TransformSpec: "u"}
	assert.Equal(t, 42, a.Transform(42))
	assert.Nil(t, a.Transform(nil))
}

func TestString(t *testing.T) {
	var al AttrList
	_ = al.Set("email,name")
	assert.Equal(t, "attributes.email:email:,attributes.name:name:", al.String())
}
