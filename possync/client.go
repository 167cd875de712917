package possync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/pos_terminal/utils"
)

// ServerClient talks to the central POS server. Transport failures map to
// ErrNetworkUnavailable, 5xx to ErrServerUnavailable, 4xx to
// ServerRejectedError, per the engine's error taxonomy.
type ServerClient struct {
	baseURL   string
	apiKey    string
	apiKeyHdr string
	http      *http.Client
}

func NewServerClient(apiKey string) (*ServerClient, error) {
	baseURL := strings.TrimSpace(os.Getenv("POS_SERVER_BASE_URL"))
	if baseURL == "" {
		return nil, errors.New("POS_SERVER_BASE_URL is empty")
	}
	apiKeyHeader := strings.TrimSpace(os.Getenv("POS_SERVER_API_KEY_HEADER"))
	if apiKeyHeader == "" {
		apiKeyHeader = "X-Terminal-Key"
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("terminal api key is empty")
	}

	timeout := time.Duration(utils.EnvInt("POS_SERVER_TIMEOUT_SECONDS", 30)) * time.Second

	return &ServerClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		apiKeyHdr: apiKeyHeader,
		http:      &http.Client{Timeout: timeout},
	}, nil
}

// Ping probes connectivity for the network monitor. Any HTTP response means
// the network path is up, even an error status.
func (c *ServerClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/terminal/ping", nil)
	if err != nil {
		return err
	}
	req.Header.Set(c.apiKeyHdr, c.apiKey)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", utils.ErrNetworkUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *ServerClient) GetSnapshot(ctx context.Context, terminalId string) (SnapshotResponse, error) {
	params := url.Values{}
	params.Set("terminal_id", terminalId)

	var snapshot SnapshotResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/terminal/snapshot?"+params.Encode(), nil, &snapshot); err != nil {
		return SnapshotResponse{}, err
	}
	return snapshot, nil
}

func (c *ServerClient) PushTransactions(ctx context.Context, req PushRequest) (PushResponse, error) {
	var verdict PushResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/terminal/transactions/push", req, &verdict); err != nil {
		return PushResponse{}, err
	}
	return verdict, nil
}

func (c *ServerClient) MergeBatch(ctx context.Context, req MergeRequest) (MergeResponse, error) {
	var resp MergeResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/terminal/merge", req, &resp); err != nil {
		return MergeResponse{}, err
	}
	return resp, nil
}

func (c *ServerClient) doJSON(ctx context.Context, method string, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set(c.apiKeyHdr, c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", utils.ErrNetworkUnavailable, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %d %s", utils.ErrServerUnavailable, resp.StatusCode, strings.TrimSpace(string(raw)))
	case resp.StatusCode >= 400:
		return &utils.ServerRejectedError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
