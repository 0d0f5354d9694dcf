// Package netcheck verifies outbound connectivity before any update starts.
package netcheck

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sysupdater/sysupdater/internal/model"
)

// Check sends a HEAD request to url. Any HTTP response, whatever its status,
// proves connectivity; a transport failure or timeout yields NoNetwork.
func Check(ctx context.Context, url string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return model.NoNetwork(fmt.Errorf("building request: %w", err))
	}

	client := &http.Client{
		// a redirect answer is already proof enough
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := client.Do(req)
	if err != nil {
		return model.NoNetwork(err)
	}
	_ = resp.Body.Close()

	slog.DebugContext(ctx, "network check passed", "url", url, "status", resp.StatusCode)
	return nil
}
