// Package registry talks to the remote miner registry over HTTP.
package registry

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/juju/loggo"

	"minerlink/pkg/model"
	"minerlink/pkg/version"
)

var logger = loggo.GetLogger("minerlink.registry")

type Config struct {
	BaseURL string
	Token   string
	CAFile  string
	Timeout time.Duration
}

type Client struct {
	base   string
	token  string
	client *http.Client
}

func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.NotValidf("empty registry url")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	httpClient, err := buildHTTPClient(cfg.CAFile, cfg.Timeout)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &Client{
		base:   strings.TrimRight(cfg.BaseURL, "/"),
		token:  cfg.Token,
		client: httpClient,
	}, nil
}

func buildHTTPClient(caFile string, timeout time.Duration) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if caFile != "" {
		pool := x509.NewCertPool()
		data, err := os.ReadFile(caFile)
		if err != nil {
			return nil, errors.Annotate(err, "read ca file")
		}
		pool.AppendCertsFromPEM(data)
		transport.TLSClientConfig = &tls.Config{RootCAs: pool}
	}
	return &http.Client{Timeout: timeout, Transport: transport}, nil
}

// Register submits the node's system information and returns the new miner id.
func (c *Client) Register(ctx context.Context, req model.RegistrationRequest) (model.RegistrationResponse, error) {
	var resp model.RegistrationResponse
	if err := c.do(ctx, http.MethodPost, "/miners/", req, &resp); err != nil {
		return resp, errors.Annotate(err, "registering miner")
	}
	if resp.MinerID == "" {
		return resp, errors.New("registry returned no miner_id")
	}
	logger.Infof("registered miner %s", resp.MinerID)
	return resp, nil
}

// UpdateNetwork pushes the current network object of a registered miner.
func (c *Client) UpdateNetwork(ctx context.Context, minerID string, network model.NetworkInfo) error {
	body := struct {
		Network model.NetworkInfo `json:"network"`
	}{Network: network}
	path := "/miners/" + url.PathEscape(minerID) + "/network"
	return errors.Annotate(c.do(ctx, http.MethodPut, path, body, nil), "updating network")
}

// GetMiner fetches what the registry currently stores for minerID.
func (c *Client) GetMiner(ctx context.Context, minerID string) (model.MinerDetails, error) {
	var m model.MinerDetails
	err := c.do(ctx, http.MethodGet, "/miners/"+url.PathEscape(minerID), nil, &m)
	return m, errors.Annotate(err, "fetching miner")
}

// SendHeartbeat posts one heartbeat.
func (c *Client) SendHeartbeat(ctx context.Context, hb model.HeartbeatRequest) error {
	return errors.Annotate(c.do(ctx, http.MethodPost, "/heart_beat", hb, nil), "sending heartbeat")
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return errors.Annotate(err, "marshal request")
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return errors.Annotate(err, "build request")
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", version.UserAgent())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Trace(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return errors.Errorf("registry returned %s body=%s", resp.Status, strings.TrimSpace(string(b)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Annotate(err, "decode response")
	}
	return nil
}
