package netcheck_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sysupdater/sysupdater/internal/model"
	"github.com/sysupdater/sysupdater/internal/netcheck"
)

func TestCheck(t *testing.T) {
	t.Parallel()

	var testCases = []struct {
		scenario string
		status   int
	}{
		{"ok", http.StatusOK},
		{"redirect", http.StatusMovedPermanently},
		{"server error still proves connectivity", http.StatusServiceUnavailable},
	}

	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			t.Parallel()
			methods := make(chan string, 1)
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				select {
				case methods <- r.Method:
				default:
				}
				if tt.status == http.StatusMovedPermanently {
					w.Header().Set("Location", "/elsewhere")
				}
				w.WriteHeader(tt.status)
			}))
			t.Cleanup(srv.Close)

			require.NoError(t, netcheck.Check(t.Context(), srv.URL, 5*time.Second))
			require.Equal(t, http.MethodHead, <-methods)
		})
	}
}

func TestCheck_Fail(t *testing.T) {
	t.Parallel()

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	t.Cleanup(slow.Close)

	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()

	var testCases = []struct {
		scenario string
		url      string
		timeout  time.Duration
	}{
		{"timeout", slow.URL, 50 * time.Millisecond},
		{"connection refused", closedURL, time.Second},
		{"bad url", "://nope", time.Second},
	}

	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			t.Parallel()
			err := netcheck.Check(t.Context(), tt.url, tt.timeout)
			require.Error(t, err)
			require.ErrorIs(t, err, model.ErrNoNetwork)
			require.Contains(t, err.Error(), "no network connectivity: ")
		})
	}
}
