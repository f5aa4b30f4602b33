package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaxBytesHandler(t *testing.T) {
	tests := []struct {
		name       string
		maxBytes   int64
		body       string
		wantStatus int
	}{
		{
			name:       "body under limit passes",
			maxBytes:   100,
			body:       "small body",
			wantStatus: http.StatusOK,
		},
		{
			name:       "body over limit rejected via content length",
			maxBytes:   5,
			body:       "this body is too large",
			wantStatus: http.StatusRequestEntityTooLarge,
		},
		{
			name:       "negative limit disables the check",
			maxBytes:   -1,
			body:       strings.Repeat("x", 4096),
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := MaxBytesHandler(tt.maxBytes)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if _, err := io.ReadAll(r.Body); err != nil {
					http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
					return
				}
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest("POST", "/test", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
		})
	}
}
