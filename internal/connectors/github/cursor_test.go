package github

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursor_EncodeDecodeRoundtrip(t *testing.T) {
	cursor := &Cursor{Version: CursorVersion, Page: 7}

	encoded := cursor.Encode()
	require.NotEmpty(t, encoded)

	decoded, err := DecodeCursor(encoded)
	require.NoError(t, err)
	assert.Equal(t, cursor.Version, decoded.Version)
	assert.Equal(t, cursor.Page, decoded.Page)
}

func TestDecodeCursor_EmptyMeansFirstPage(t *testing.T) {
	cursor, err := DecodeCursor("")
	require.NoError(t, err)
	assert.Equal(t, 1, cursor.Page)
	assert.Equal(t, CursorVersion, cursor.Version)
}

func TestDecodeCursor_InvalidBase64(t *testing.T) {
	_, err := DecodeCursor("not base64!!!")
	assert.ErrorIs(t, err, ErrInvalidCursor)
}

func TestDecodeCursor_InvalidJSON(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("{not json"))
	_, err := DecodeCursor(encoded)
	assert.ErrorIs(t, err, ErrInvalidCursor)
}

func TestDecodeCursor_ClampsPageToOne(t *testing.T) {
	encoded := (&Cursor{Version: CursorVersion, Page: 0}).Encode()

	cursor, err := DecodeCursor(encoded)
	require.NoError(t, err)
	assert.Equal(t, 1, cursor.Page)
}

func TestCursor_Next(t *testing.T) {
	cursor := NewCursor()

	next := cursor.Next(2)
	assert.Equal(t, 2, next.Page)
	assert.Equal(t, CursorVersion, next.Version)
	assert.Equal(t, 1, cursor.Page, "original cursor is unchanged")
}

func TestCursor_NilEncode(t *testing.T) {
	var cursor *Cursor
	assert.Empty(t, cursor.Encode())
}
