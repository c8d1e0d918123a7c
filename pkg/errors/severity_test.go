package errors

import (
	"encoding/json"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditError_Error(t *testing.T) {
	err := NewSourceUnreadableError("s3://bills/jan.txt", io.ErrUnexpectedEOF)
	assert.Equal(t, "[error] SOURCE_UNREADABLE: Unable to read invoice source (source: s3://bills/jan.txt): unexpected EOF", err.Error())
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	assert.Equal(t, "[warning] EMPTY_INPUT: Invoice text is empty", NewEmptyInputError("").Error())
}

func TestCode(t *testing.T) {
	wrapped := fmt.Errorf("failed to load: %w", NewInputTooLargeError("-", 10))
	assert.Equal(t, ErrCodeInputTooLarge, Code(wrapped))
	assert.Equal(t, "", Code(io.EOF))
	assert.Equal(t, "", Code(nil))
}

func TestSeverity_JSON(t *testing.T) {
	data, err := json.Marshal(NewStoreError("save", io.EOF))
	require.NoError(t, err)
	assert.JSONEq(t, `{"code":"STORE_FAILED","message":"Report store save failed","severity":"error","recoverable":true}`, string(data))
	assert.Equal(t, "unknown", Severity(42).String())
}
