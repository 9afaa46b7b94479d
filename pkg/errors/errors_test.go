package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeToHTTPStatus(t *testing.T) {
	cases := map[ErrorCode]int{
		CodeInvalidParam:         http.StatusBadRequest,
		CodeInvalidRange:         http.StatusBadRequest,
		CodeMinimumParts:         http.StatusBadRequest,
		CodePartNotFound:         http.StatusNotFound,
		CodeChapterOutlineAbsent: http.StatusNotFound,
		CodeJobNotFound:          http.StatusNotFound,
		CodeSerialOrderViolation: http.StatusConflict,
		CodeConflict:             http.StatusConflict,
		CodeGenerationFailed:     http.StatusBadGateway,
		CodeServiceUnavailable:   http.StatusServiceUnavailable,
		CodeCascadeTransaction:   http.StatusInternalServerError,
		CodeDatabaseError:        http.StatusInternalServerError,
	}
	for code, status := range cases {
		assert.Equal(t, status, New(code, "x").HTTPStatus, string(code))
	}
}

func TestWrapKeepsChain(t *testing.T) {
	root := stderrors.New("connection reset")
	err := fmt.Errorf("save outline: %w", CascadeFailed(root))

	require.True(t, IsAppError(err))
	assert.True(t, IsCode(err, CodeCascadeTransaction))
	assert.False(t, IsCode(err, CodeConflict))
	assert.ErrorIs(t, err, root)
	assert.Contains(t, err.Error(), "[5006]")
}

func TestAsAppErrorFallsBackToUnknown(t *testing.T) {
	appErr := AsAppError(stderrors.New("boom"))
	assert.Equal(t, CodeUnknown, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.HTTPStatus)
	assert.False(t, IsCode(stderrors.New("boom"), CodeUnknown))
}

func TestWithMetaAndDetail(t *testing.T) {
	err := SerialOrderViolation("第%d卷不是最新分卷", 2).
		WithMeta("required", "cascade_delete=true").
		WithDetail("parts 3-4 would be removed")

	assert.Equal(t, "第2卷不是最新分卷", err.Message)
	assert.Equal(t, "cascade_delete=true", err.Meta["required"])
	assert.Equal(t, "parts 3-4 would be removed", err.Detail)
	assert.Equal(t, http.StatusConflict, err.HTTPStatus)
}
