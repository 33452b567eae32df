package errors

import (
	stdErrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCarriesCodeAndMessage(t *testing.T) {
	err := New(CodeConflict, "job already taken")
	assert.Equal(t, CodeConflict, err.Code())
	assert.Equal(t, "job already taken", err.Message())
	assert.Equal(t, "CONFLICT: job already taken", err.Error())
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stdErrors.New("connection refused")
	err := Wrap(CodeDependency, cause, "refund request")
	require.ErrorIs(t, err, cause)
	assert.Equal(t, CodeDependency, err.Code())
}

func TestAsUnwrapsNestedTypedError(t *testing.T) {
	inner := New(CodeStateConflict, "job not paid")
	wrapped := Wrap(CodeDependency, inner, "accept job")

	typed := As(wrapped)
	require.NotNil(t, typed)
	// As returns the outermost typed error.
	assert.Equal(t, CodeDependency, typed.Code())
}

func TestIsCode(t *testing.T) {
	err := New(CodeConflict, "taken")
	assert.True(t, IsCode(err, CodeConflict))
	assert.False(t, IsCode(err, CodeNotFound))
	assert.False(t, IsCode(nil, CodeConflict))
}

func TestMetadataForConflictMapsTo409(t *testing.T) {
	meta := MetadataFor(CodeConflict)
	assert.Equal(t, http.StatusConflict, meta.HTTPStatus)
	assert.False(t, meta.Retryable)
}

func TestMetadataForUnknownFallsBackToInternal(t *testing.T) {
	meta := MetadataFor(Code("SOMETHING_ELSE"))
	assert.Equal(t, http.StatusInternalServerError, meta.HTTPStatus)
}

func TestDumpCollectsChain(t *testing.T) {
	cause := stdErrors.New("boom")
	err := Wrap(CodeInternal, cause, "outer")
	d := Dump(err)
	assert.Equal(t, CodeInternal, d.Code)
	assert.Len(t, d.Chain, 2)
}
