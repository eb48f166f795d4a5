package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCase represents a generic test case structure
type TestCase[I, O any] struct {
	Name     string
	Input    I
	Expected O
	WantErr  bool
	ErrMsg   string
	Setup    func()
	Teardown func()
	AssertFn func(*testing.T, O)
}

// RunTestCases runs a slice of test cases with the provided test function
func RunTestCases[I, O any](t *testing.T, cases []TestCase[I, O], fn func(I) (O, error)) {
	for _, tc := range cases {
		t.Run(tc.Name, func(t *testing.T) {
			if tc.Setup != nil {
				tc.Setup()
			}
			if tc.Teardown != nil {
				defer tc.Teardown()
			}

			result, err := fn(tc.Input)

			if tc.WantErr {
				require.Error(t, err)
				if tc.ErrMsg != "" {
					assert.Contains(t, err.Error(), tc.ErrMsg)
				}
				return
			}

			require.NoError(t, err)

			if tc.AssertFn != nil {
				tc.AssertFn(t, result)
			} else {
				assert.Equal(t, tc.Expected, result)
			}
		})
	}
}

// NewHTTPRequest creates a new HTTP request for testing handlers
func NewHTTPRequest(method, path string, body interface{}) *http.Request {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req := httptest.NewRequest(method, path, bodyReader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

// WithRequestID adds a request ID header
func WithRequestID(req *http.Request, requestID string) *http.Request {
	req.Header.Set("X-Request-ID", requestID)
	return req
}

// ExecuteRequest executes an HTTP request and returns the response recorder
func ExecuteRequest(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// AssertStatus asserts the response status code
func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	assert.Equal(t, expected, rr.Code, "unexpected status code. Body: %s", rr.Body.String())
}

// AssertBodyContains asserts the response body contains a string
func AssertBodyContains(t *testing.T, rr *httptest.ResponseRecorder, expected string) {
	t.Helper()
	assert.Contains(t, rr.Body.String(), expected)
}

// DecodeResponse decodes a JSON response body into the given struct
func DecodeResponse(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), v))
}
