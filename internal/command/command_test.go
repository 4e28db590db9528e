// Copyright (c) 2026 Jess Grable <jgrable@hey.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitPrefixes(t *testing.T) {
	assert.Nil(t, splitPrefixes(""))
	assert.Equal(t, []string{"sales"}, splitPrefixes("sales"))
	assert.Equal(t, []string{"sales", "marketing"}, splitPrefixes("sales, marketing"))
	assert.Equal(t, []string{"sales"}, splitPrefixes("sales,,"))
}

func TestWantPrefix(t *testing.T) {
	assert.True(t, wantPrefix("sales", nil))
	assert.True(t, wantPrefix("sales_eu", []string{"sales"}))
	assert.True(t, wantPrefix("marketing", []string{"sales", "marketing"}))
	assert.False(t, wantPrefix("staging_tmp", []string{"sales"}))
}

func TestOutputValidator(t *testing.T) {
	for _, v := range []string{"text", "json", "raw", "yaml"} {
		assert.NoError(t, OutputValidator(v))
	}
	assert.Error(t, OutputValidator("xml"))
	assert.Error(t, OutputValidator(""))
}

func TestJammedFlagValidator(t *testing.T) {
	assert.NoError(t, JammedFlagValidator("CSV~1"))
	assert.Error(t, JammedFlagValidator("--oops"))
}

func TestMustBeTrueValidator(t *testing.T) {
	assert.NoError(t, MustBeTrueValidator(true))
	assert.Error(t, MustBeTrueValidator(false))
}

func TestFlagValidators(t *testing.T) {
	err := FlagValidators("text", JammedFlagValidator, OutputValidator)
	assert.NoError(t, err)

	err = FlagValidators("--text", JammedFlagValidator, OutputValidator)
	assert.Error(t, err)
}
