// Copyright © 2026 Jess Grable jgrable@hey.com
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTestConfig(t *testing.T, namespace string) {
	t.Helper()
	t.Setenv("SNAPCTL_CFG", "testdata/snapctl.yaml")
	_, err := Load(namespace)
	require.NoError(t, err)
}

func TestLoad(t *testing.T) {
	loadTestConfig(t, "sq")

	assert.Equal(t, "testdata/snapctl.yaml", Config.Source)
	assert.Equal(t, "sq", Config.Namespace)
	assert.NotEmpty(t, Config.Data)
}

func TestGetString(t *testing.T) {
	loadTestConfig(t, "")

	got, err := GetString("project")
	require.NoError(t, err)
	assert.Equal(t, "acme-data-prod", got)

	got, err = GetString("colors.title")
	require.NoError(t, err)
	assert.Equal(t, "#f6be00", got)
}

func TestGetStringNamespaced(t *testing.T) {
	loadTestConfig(t, "sq")

	// Namespaced key wins, bare keys still resolve.
	got, err := GetString("sort")
	require.NoError(t, err)
	assert.Equal(t, "-serial", got)

	got, err = GetString("project")
	require.NoError(t, err)
	assert.Equal(t, "acme-data-prod", got)
}

func TestGetStringDefault(t *testing.T) {
	loadTestConfig(t, "")

	got, err := GetString("no.such.key", "fallback")
	require.NoError(t, err)
	assert.Equal(t, "fallback", got)

	_, err = GetString("no.such.key")
	assert.Error(t, err)
}

func TestGetStringSlice(t *testing.T) {
	loadTestConfig(t, "fetch")

	got, err := GetStringSlice("exclude")
	require.NoError(t, err)
	assert.Equal(t, []string{"staging_", "tmp_"}, got)

	got, err = GetStringSlice("no.such.key", []string{"x"})
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, got)
}

func TestGetStringSliceFromSetBundle(t *testing.T) {
	loadTestConfig(t, "")

	got, err := GetStringSlice("sq.set.wide")
	require.NoError(t, err)
	assert.Equal(t, []string{"--titles", "--output", "text"}, got)
}

func TestGetInt(t *testing.T) {
	loadTestConfig(t, "sq")

	got, err := GetInt("limit")
	require.NoError(t, err)
	assert.Equal(t, 25, got)

	got, err = GetInt("padding")
	require.NoError(t, err)
	assert.Equal(t, 2, got)

	got, err = GetInt("no.such.key", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, got)
}

func TestGetStringWrongType(t *testing.T) {
	loadTestConfig(t, "")

	_, err := GetString("padding")
	assert.ErrorContains(t, err, "not a string")
}
