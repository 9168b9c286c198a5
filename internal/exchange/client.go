package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"notitrade/internal/config"
	"notitrade/internal/metrics"
)

const (
	DefaultURL     = "https://api.hbdm.vn"
	DefaultTimeout = 20 * time.Second

	maxResponseSize = 4 << 20
)

type Client struct {
	baseURL    string
	host       string
	signer     *Signer
	httpClient *http.Client
	log        logrus.FieldLogger
}

func New(cfg config.ExchangeConfig, creds config.Credentials, log logrus.FieldLogger) (*Client, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	baseURL := strings.TrimRight(cfg.URL, "/")
	if baseURL == "" {
		baseURL = DefaultURL
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse exchange url")
	}
	if parsed.Hostname() == "" {
		return nil, errors.Errorf("exchange url %q has no host", baseURL)
	}

	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		baseURL:    baseURL,
		host:       strings.ToLower(parsed.Hostname()),
		signer:     NewSigner(creds),
		httpClient: &http.Client{Timeout: timeout},
		log:        log.WithField("exchange", "huobi"),
	}, nil
}

// envelope is the common response wrapper. Linear swap endpoints report
// err_code/err_msg, spot endpoints err-code/err-msg.
type envelope struct {
	Status      string          `json:"status"`
	Data        json.RawMessage `json:"data"`
	ErrCode     json.RawMessage `json:"err_code"`
	ErrMsg      string          `json:"err_msg"`
	SpotErrCode json.RawMessage `json:"err-code"`
	SpotErrMsg  string          `json:"err-msg"`
	Ts          int64           `json:"ts"`
}

func (e envelope) code() string {
	for _, raw := range []json.RawMessage{e.ErrCode, e.SpotErrCode} {
		code := strings.Trim(string(raw), `"`)
		if code != "" && code != "null" {
			return code
		}
	}
	return ""
}

func (e envelope) message() string {
	if e.ErrMsg != "" {
		return e.ErrMsg
	}
	return e.SpotErrMsg
}

func normalizePath(path string) string {
	return "/" + strings.TrimLeft(path, "/")
}

// get signs only the auth params; business params ride along unsigned.
func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	path = normalizePath(path)

	query, err := c.signer.SignedQuery(http.MethodGet, c.host, path)
	if err != nil {
		return err
	}
	for k, vs := range params {
		for _, v := range vs {
			query.Add(k, v)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return errors.Wrap(err, "failed to create HTTP request")
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, path, out)
}

// post signs only the auth params, sent as the URL query; the JSON body is unsigned.
func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	path = normalizePath(path)

	query, err := c.signer.SignedQuery(http.MethodPost, c.host, path)
	if err != nil {
		return err
	}

	if body == nil {
		body = map[string]interface{}{}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "failed to marshal request data")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path+"?"+query.Encode(), bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "failed to create HTTP request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, path, out)
}

func (c *Client) do(req *http.Request, path string, out interface{}) error {
	log := c.log.WithFields(logrus.Fields{"method": req.Method, "path": path})
	started := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(req.Method, path, "transport")
		log.WithError(err).Warn("exchange request failed")
		return &TransportError{Method: req.Method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		c.observe(req.Method, path, "transport")
		return &TransportError{Method: req.Method, Path: path, StatusCode: resp.StatusCode, Err: errors.Wrap(err, "failed to read response body")}
	}

	log = log.WithFields(logrus.Fields{"status": resp.StatusCode, "elapsed": time.Since(started)})

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil || env.Status == "" {
		c.observe(req.Method, path, "transport")
		log.WithField("body", string(respBody)).Warn("unexpected exchange response")
		if err == nil {
			err = errors.New("response has no status")
		}
		return &TransportError{Method: req.Method, Path: path, StatusCode: resp.StatusCode, Err: errors.Wrap(err, "failed to parse response")}
	}

	if env.Status != "ok" {
		c.observe(req.Method, path, "rejected")
		exErr := &ExchangeError{Path: path, Code: env.code(), Message: env.message()}
		log.WithFields(logrus.Fields{"code": exErr.Code, "message": exErr.Message}).Warn("exchange rejected request")
		return exErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.observe(req.Method, path, "transport")
		return &TransportError{Method: req.Method, Path: path, StatusCode: resp.StatusCode, Err: errors.New("unexpected status code")}
	}

	c.observe(req.Method, path, "ok")
	log.Debug("exchange request completed")

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &TransportError{Method: req.Method, Path: path, StatusCode: resp.StatusCode, Err: errors.Wrap(err, "failed to parse response data")}
	}
	return nil
}

func (c *Client) observe(method, path, outcome string) {
	metrics.ExchangeRequestsTotal.WithLabelValues(method, path, outcome).Inc()
}
