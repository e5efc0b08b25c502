// Copyright (c) 2022. Alvin Baena.
// SPDX-License-Identifier: MIT

package protocol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerdict_WireLiterals(t *testing.T) {
	assert.Equal(t, "Found", Found.String())
	assert.Equal(t, "Not Found", NotFound.String())
	assert.Equal(t, "FoundBoth", FoundBoth.String())
	assert.Equal(t, "FoundUsernameOnly", FoundUsernameOnly.String())
	assert.Equal(t, "FoundPasswordOnly", FoundPasswordOnly.String())
	assert.Equal(t, "NotFound", NotFoundBoth.String())
}

func TestParseResponse(t *testing.T) {
	for _, v := range Verdicts {
		got, err := ParseResponse(v.String())
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}

	_, err := ParseResponse("Maybe")
	assert.Error(t, err)

	_, err = ParseResponse("not found")
	assert.Error(t, err)
}

func TestErrorResponse(t *testing.T) {
	line := ErrorResponse(errors.New("bad\nthing"))
	assert.Equal(t, "Error: bad thing", line)

	_, err := ParseResponse(line)
	var se *ServerError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "bad thing", se.Message)
}

func TestVerdict_Positive(t *testing.T) {
	assert.True(t, Found.Positive())
	assert.True(t, FoundUsernameOnly.Positive())
	assert.False(t, NotFound.Positive())
	assert.False(t, NotFoundBoth.Positive())
}
