package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondErrorMapsSentinels(t *testing.T) {
	cases := []struct {
		err    error
		status int
		detail string
	}{
		{ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{fmt.Errorf("%w: book 7", ErrNotFound), http.StatusNotFound, "resource not found: book 7"},
		{fmt.Errorf("%w: redis down", ErrUnavailable), http.StatusServiceUnavailable, ""},
		{errors.New("pq: secret detail"), http.StatusInternalServerError, ""},
	}
	for _, tc := range cases {
		res := httptest.NewRecorder()
		RespondError(res, tc.err)

		assert.Equal(t, tc.status, res.Code)
		assert.Equal(t, "application/problem+json", res.Header().Get("Content-Type"))
		var body ProblemDetail
		require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
		assert.Equal(t, tc.status, body.Status)
		assert.Equal(t, tc.detail, body.Detail)
	}
}

func TestJSON(t *testing.T) {
	res := httptest.NewRecorder()
	JSON(res, http.StatusAccepted, map[string]string{"id": "1"})
	assert.Equal(t, http.StatusAccepted, res.Code)
	assert.Equal(t, "application/json", res.Header().Get("Content-Type"))
	assert.Equal(t, "no-store", res.Header().Get("Cache-Control"))
	assert.JSONEq(t, `{"id":"1"}`, res.Body.String())
}
