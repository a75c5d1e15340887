package rewards

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"

	http_tls "github.com/bogdanfinn/fhttp"
	tls_client "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

var (
	ErrUnexpectedStatus = errors.New("unexpected rewards api status")
	ErrNoChainData      = errors.New("no reward data for chain")
	ErrNoTokenData      = errors.New("no reward data for token")
)

// Doer is the part of tls_client.HttpClient the rewards client needs.
type Doer interface {
	Do(req *http_tls.Request) (*http_tls.Response, error)
}

type Client struct {
	baseURL string
	http    Doer
	logger  *zap.Logger
}

// NewHTTPClient returns the tls-client transport used against the
// rewards API. Requests time out after 30 seconds.
func NewHTTPClient() (tls_client.HttpClient, error) {
	jar := tls_client.NewCookieJar()
	options := []tls_client.HttpClientOption{
		tls_client.WithTimeoutSeconds(30),
		tls_client.WithClientProfile(profiles.Chrome_120),
		tls_client.WithCookieJar(jar),
	}

	client, err := tls_client.NewHttpClient(tls_client.NewNoopLogger(), options...)
	if err != nil {
		return nil, fmt.Errorf("error creating tls client: %w", err)
	}
	return client, nil
}

func NewClient(baseURL string, doer Doer, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    doer,
		logger:  logger.Named("merkl"),
	}
}

// Fetch returns the rewards of user on chainID, keyed by chain id.
func (c *Client) Fetch(ctx context.Context, chainID int64, user common.Address) (Response, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid rewards api url: %w", err)
	}
	q := u.Query()
	q.Set("chainIds", strconv.FormatInt(chainID, 10))
	q.Set("user", user.Hex())
	u.RawQuery = q.Encode()

	req, err := http_tls.NewRequestWithContext(ctx, http_tls.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("accept", "application/json")

	c.logger.Debug("querying rewards", zap.String("url", u.String()))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rewards request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading rewards response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %d: %s", ErrUnexpectedStatus, resp.StatusCode, truncate(body, 256))
	}

	var out Response
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("error parsing rewards response: %w", err)
	}
	return out, nil
}

// TokenReward fetches the rewards of user and selects the record for token.
func (c *Client) TokenReward(ctx context.Context, chainID int64, user, token common.Address) (*TokenReward, error) {
	resp, err := c.Fetch(ctx, chainID, user)
	if err != nil {
		return nil, err
	}
	return resp.TokenReward(chainID, token)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
