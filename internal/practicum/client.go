package practicum

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"homeworkbot/internal/homework"
)

// DefaultEndpoint is the Practicum homework statuses API.
const DefaultEndpoint = "https://practicum.yandex.ru/api/user_api/homework_statuses/"

// maxBodyBytes caps how much of a response we are willing to read.
const maxBodyBytes = 4 << 20

type Config struct {
	Endpoint string
	Token    string
	// Timeout bounds a single request. 0 means 30s.
	Timeout time.Duration
}

// Client performs the single status query the poll loop needs.
type Client struct {
	endpoint *url.URL
	token    string
	http     *http.Client
}

// ValidateEndpoint checks that raw is an absolute http(s) URL.
func ValidateEndpoint(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("endpoint %q: %w", raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("endpoint %q: want absolute http(s) URL", raw)
	}
	return u, nil
}

func New(cfg Config, hc *http.Client) (*Client, error) {
	raw := cfg.Endpoint
	if strings.TrimSpace(raw) == "" {
		raw = DefaultEndpoint
	}
	u, err := ValidateEndpoint(raw)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("practicum token is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{endpoint: u, token: cfg.Token, http: hc}, nil
}

// Endpoint returns the configured endpoint as a string.
func (c *Client) Endpoint() string { return c.endpoint.String() }

// Fetch returns the decoded body for homeworks updated since the given unix time.
// Transport and HTTP failures map to EndpointUnreachable, undecodable bodies
// to MalformedPayload. The record itself is not inspected beyond the API's
// error-code envelope.
func (c *Client) Fetch(ctx context.Context, since int64) (homework.Record, error) {
	u := *c.endpoint
	q := u.Query()
	q.Set("from_date", strconv.FormatInt(since, 10))
	u.RawQuery = q.Encode()
	endpoint := c.endpoint.String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, homework.Unreachable(err, "%s", endpoint)
	}
	req.Header.Set("Authorization", "OAuth "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, homework.Unreachable(err, "%s", endpoint)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain a little so the connection can be reused.
		_, _ = io.CopyN(io.Discard, resp.Body, 4096)
		return nil, homework.Unreachable(fmt.Errorf("http status %d", resp.StatusCode), "%s", endpoint)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, homework.Unreachable(err, "%s", endpoint)
	}

	var rec any
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&rec); err != nil {
		return nil, homework.Malformed(err, "decode response")
	}
	if dec.More() {
		return nil, homework.Malformed(errors.New("trailing data"), "decode response")
	}

	if msg, err := apiError(rec); err != nil {
		if msg != "" {
			return nil, homework.Rejected(err, msg, endpoint)
		}
		return nil, homework.Unreachable(err, "%s", endpoint)
	}
	return rec, nil
}

// Chat texts for the refusal envelopes.
const (
	MsgBadCredentials = "Учетные данные неверные (PRACTICUM_TOKEN)"
	MsgBadKeys        = "Неверные ключи для доступа к эндпойнту"
)

// apiError recognizes the API's {"code": ...} envelope that may arrive with
// 200 OK. msg is the fixed chat text for known codes.
func apiError(rec any) (msg string, err error) {
	obj, ok := rec.(map[string]any)
	if !ok {
		return "", nil
	}
	code, _ := obj["code"].(string)
	switch code {
	case "":
		return "", nil
	case "not_authenticated":
		return MsgBadCredentials, errors.New("credentials rejected (PRACTICUM_TOKEN)")
	case "UnknownError":
		return MsgBadKeys, errors.New("invalid request keys")
	default:
		return "", fmt.Errorf("api error code %q", code)
	}
}
