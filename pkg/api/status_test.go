package api

import (
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestHighest(t *testing.T) {
	assert.Equal(t, StatusUnknown, Highest())
	assert.Equal(t, StatusFailed, Highest(StatusStarted, StatusFailed))
	assert.Equal(t, StatusCompleted, Highest(StatusCompleted, StatusStarted))
	assert.Equal(t, StatusFailed, Highest(StatusCompleted, StatusFailed, StatusStarted))
	assert.Equal(t, StatusStarted, Highest(StatusUnknown, StatusStarted))
}

func TestParseStatus(t *testing.T) {
	assert.Equal(t, StatusStarted, ParseStatus("running"))
	assert.Equal(t, StatusCompleted, ParseStatus("completed"))
	assert.Equal(t, StatusUnknown, ParseStatus("whatever"))
}

func TestFinished(t *testing.T) {
	assert.True(t, StatusCompleted.Finished())
	assert.True(t, StatusFailed.Finished())
	assert.False(t, StatusStarted.Finished())
	assert.False(t, StatusUnknown.Finished())
}

func TestError(t *testing.T) {
	err := errors.Wrap(NewError(KindNoUsableInput, "No image files found in ZIP"), "cannot ingest")
	assert.Equal(t, KindNoUsableInput, KindOf(err))
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))

	var e Error
	assert.True(t, errors.As(err, &e))
	assert.Equal(t, http.StatusBadRequest, e.HTTPStatus())
	assert.Equal(t, http.StatusServiceUnavailable, Error{Kind: KindUpstreamUnavailable}.HTTPStatus())
	assert.Equal(t, "Invalid ZIP file: zip: not a valid zip file", WrapError(errors.New("zip: not a valid zip file"), KindBadArchive, "Invalid ZIP file").Error())
}
