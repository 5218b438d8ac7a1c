package video

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/hackgods/telehealth-scheduling/internal/apperr"
)

var ErrUnavailable = apperr.New(apperr.KindUpstreamUnavailable, "video service unavailable")

var (
	xmlSessionID  = regexp.MustCompile(`<session_id>([^<]+)</session_id>`)
	jsonSessionID = regexp.MustCompile(`"session_id"\s*:\s*"([^"]+)"`)
)

type Client struct {
	baseURL string
	signer  *Signer
	http    *http.Client
	timeout time.Duration
	now     func() time.Time
}

// NewClient builds a client for the video REST API rooted at baseURL. Each
// call is bounded by timeout.
func NewClient(baseURL string, signer *Signer, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		signer:  signer,
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		timeout: timeout,
		now:     time.Now,
	}
}

// CreateSession asks the video API for a new routed session and returns its
// id. Any failure is reported as ErrUnavailable.
func (c *Client) CreateSession(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	assertion, err := c.signer.ProjectAssertion(c.now())
	if err != nil {
		return "", fmt.Errorf("%w: sign assertion: %w", ErrUnavailable, err)
	}

	form := url.Values{}
	form.Set("p2p.preference", "disabled")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/session/create", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %w", ErrUnavailable, err)
	}
	req.Header.Set("X-AUTH", assertion)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %w", ErrUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: create session returned status %d", ErrUnavailable, resp.StatusCode)
	}

	id := extractSessionID(body)
	if id == "" {
		return "", fmt.Errorf("%w: no session id in response", ErrUnavailable)
	}
	return id, nil
}

// IssueJoinToken signs a token that lets its holder join sessionID until
// expireAt.
func (c *Client) IssueJoinToken(sessionID string, expireAt time.Time) (string, error) {
	return c.signer.JoinToken(sessionID, expireAt, c.now())
}

func extractSessionID(body []byte) string {
	if m := xmlSessionID.FindSubmatch(body); m != nil {
		return strings.TrimSpace(string(m[1]))
	}
	if m := jsonSessionID.FindSubmatch(body); m != nil {
		return string(m[1])
	}
	return ""
}
