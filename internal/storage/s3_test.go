// -------------------------------------------------------------------------------
// S3 Backend Error Mapping Tests
//
// Author: Alex Freidah
//
// Tests for the classification of S3 errors into the backend's error taxonomy:
// missing objects, conditional and range pass-through statuses, and generic
// failures.
// -------------------------------------------------------------------------------

package storage

import (
	"errors"
	"net/http"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// httpError wraps a bare status code the way the SDK surfaces unmodeled
// responses.
func httpError(status int) error {
	return &smithyhttp.ResponseError{
		Response: &smithyhttp.Response{Response: &http.Response{StatusCode: status}},
		Err:      errors.New("api error"),
	}
}

func TestMapS3Error(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		label      string
		passStatus int
		mapped     error
	}{
		{"NoSuchKey", &types.NoSuchKey{}, "not_found", 0, ErrObjectNotFound},
		{"TypedNotFound", &types.NotFound{}, "not_found", 0, ErrObjectNotFound},
		{"HTTP404", httpError(404), "not_found", 0, ErrObjectNotFound},
		{"HTTP304", httpError(304), "not_modified", 304, nil},
		{"HTTP301", httpError(301), "moved", 301, nil},
		{"HTTP416", httpError(416), "bad_range", 416, nil},
		{"HTTP500", httpError(500), "", 0, nil},
		{"PlainError", errors.New("dial tcp: refused"), "", 0, nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			label, pass, mapped := mapS3Error(tc.err)
			if label != tc.label {
				t.Errorf("label = %q, want %q", label, tc.label)
			}
			if pass != tc.passStatus {
				t.Errorf("passStatus = %d, want %d", pass, tc.passStatus)
			}
			if !errors.Is(mapped, tc.mapped) {
				t.Errorf("mapped = %v, want %v", mapped, tc.mapped)
			}
		})
	}
}
