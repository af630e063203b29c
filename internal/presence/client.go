package presence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/noah-isme/delivery-ops-api/internal/dto"
	"github.com/noah-isme/delivery-ops-api/internal/models"
	appErrors "github.com/noah-isme/delivery-ops-api/pkg/errors"
)

// HTTPStore upserts pings through the API's PUT /presence endpoint.
type HTTPStore struct {
	endpoint string
	token    func() string
	client   *http.Client
}

// NewHTTPStore constructs a client for baseURL (including the API prefix).
func NewHTTPStore(baseURL string, token func() string, timeout time.Duration) *HTTPStore {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if token == nil {
		token = func() string { return "" }
	}
	return &HTTPStore{
		endpoint: strings.TrimRight(baseURL, "/") + "/presence",
		token:    token,
		client:   &http.Client{Timeout: timeout},
	}
}

// Upsert implements Store. Transport failures and 5xx responses map to ErrUnavailable so the
// tracker queues the ping; 400 responses map to ErrValidation.
func (s *HTTPStore) Upsert(ctx context.Context, ping models.LocationPing) error {
	lat, lon := ping.Latitude, ping.Longitude
	captured := ping.LastUpdate
	payload, err := json.Marshal(dto.UpsertLocationRequest{
		Latitude:   &lat,
		Longitude:  &lon,
		UserName:   ping.UserName,
		CapturedAt: &captured,
	})
	if err != nil {
		return fmt.Errorf("encode location: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token := s.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return appErrors.Unavailable(err, "presence store unreachable")
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return appErrors.Wrap(fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(body)),
			appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "presence store rejected the ping")
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return appErrors.Wrap(fmt.Errorf("status %d", resp.StatusCode),
			appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "presence store refused the token")
	default:
		return appErrors.Unavailable(fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(body)), "presence store unavailable")
	}
}
