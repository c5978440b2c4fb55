package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/projecteru2/barge/log"
	"github.com/projecteru2/barge/types"
	"github.com/projecteru2/barge/utils"
)

const (
	apiPrefix    = "/v6"
	maxErrorBody = 4096
)

// Client talks to the cloud REST api
type Client struct {
	config     types.APIConfig
	httpClient *http.Client
}

// New makes a cloud client, a nil httpClient means the shared one
func New(config types.APIConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = utils.GetHTTPClient()
	}
	config.Endpoint = strings.TrimRight(config.Endpoint, "/")
	config.Builder = strings.TrimRight(config.Builder, "/")
	return &Client{config: config, httpClient: httpClient}
}

type request struct {
	name   string
	method string
	url    string
	query  url.Values
	body   any
	// raw bodies are streamed as is, never retried and bounded by the caller ctx only
	raw   io.Reader
	retry bool
}

// marks errors worth another attempt
var errTransient = errors.New("transient")

// d is the envelope of list responses
type d[T any] struct {
	D []T `json:"d"`
}

func (c *Client) apiURL(path string) string {
	return c.config.Endpoint + apiPrefix + path
}

func (c *Client) call(ctx context.Context, req request, result any) error {
	if !req.retry || req.raw != nil {
		return c.do(ctx, req, result)
	}
	return utils.Retry(ctx, req.name, c.config.Retry, func() error {
		err := c.do(ctx, req, result)
		if err != nil && !errors.Is(err, errTransient) {
			return utils.Permanent(err)
		}
		return err
	})
}

func (c *Client) do(ctx context.Context, req request, result any) error {
	if req.raw == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.RequestTimeout)
		defer cancel()
	}

	body := req.raw
	if req.body != nil {
		b, err := json.Marshal(req.body)
		if err != nil {
			return errors.WithStack(err)
		}
		body = bytes.NewReader(b)
	}
	u := req.url
	if len(req.query) > 0 {
		u += "?" + req.query.Encode()
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, u, body)
	if err != nil {
		return errors.WithStack(err)
	}
	switch {
	case req.body != nil:
		httpReq.Header.Set("Content-Type", "application/json")
	case req.raw != nil:
		httpReq.Header.Set("Content-Type", "application/x-tar")
	}
	if c.config.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.Token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, types.ErrUnexpectedRedirect) || ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled) {
			return errors.WithStack(err)
		}
		return errors.Mark(errors.Wrapf(err, "%s %s", req.method, req.url), errTransient)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		err := errors.Wrapf(types.ErrAPIRequest, "%s %s: %s: %s", req.method, req.url, resp.Status, strings.TrimSpace(string(b)))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			return errors.Mark(err, errTransient)
		}
		return err
	}
	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil && err != io.EOF {
		return errors.Wrapf(err, "decode %s %s", req.method, req.url)
	}
	return nil
}

// quote makes an OData string literal
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// GetApplication finds a fleet by slug (owner/name) or by name
func (c *Client) GetApplication(ctx context.Context, fleet string) (*types.Application, error) {
	filter := "app_name eq " + quote(fleet)
	if strings.Contains(fleet, "/") {
		filter = "slug eq " + quote(strings.ToLower(fleet))
	}
	resp := d[application]{}
	err := c.call(ctx, request{
		name:   "GetApplication",
		method: http.MethodGet,
		url:    c.apiURL("/application"),
		query: url.Values{
			"$filter": {filter},
			"$expand": {"is_for__device_type($select=slug;$expand=is_of__cpu_architecture($select=slug)),organization($select=handle)"},
		},
		retry: true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.D) == 0 {
		return nil, errors.Wrapf(types.ErrNoApplication, "%s", fleet)
	}
	if len(resp.D) > 1 {
		return nil, errors.Wrapf(types.ErrNoApplication, "%s is ambiguous, use owner/name", fleet)
	}
	app := resp.D[0].toApplication()
	log.WithFunc("cloud.GetApplication").Debugf(ctx, "fleet %s is %d for %s", fleet, app.ID, app.DeviceType)
	return app, nil
}

// GetDeviceTypeArch returns the cpu arch of a device type
func (c *Client) GetDeviceTypeArch(ctx context.Context, deviceType string) (string, error) {
	resp := d[deviceTypeRecord]{}
	err := c.call(ctx, request{
		name:   "GetDeviceTypeArch",
		method: http.MethodGet,
		url:    c.apiURL("/device_type"),
		query: url.Values{
			"$filter": {"slug eq " + quote(deviceType)},
			"$select": {"slug"},
			"$expand": {"is_of__cpu_architecture($select=slug)"},
		},
		retry: true,
	}, &resp)
	if err != nil {
		return "", err
	}
	if len(resp.D) == 0 || len(resp.D[0].Arch) == 0 {
		return "", errors.Wrapf(types.ErrAPIRequest, "unknown device type %s", deviceType)
	}
	return resp.D[0].Arch[0].Slug, nil
}

// AuthorizePush gets a registry token able to push repos and pull previousRepos
func (c *Client) AuthorizePush(ctx context.Context, registry string, repos, previousRepos []string) (string, error) {
	query := url.Values{"service": {registry}}
	for _, repo := range repos {
		query.Add("scope", fmt.Sprintf("repository:%s:pull,push", repo))
	}
	for _, repo := range previousRepos {
		query.Add("scope", fmt.Sprintf("repository:%s:pull", repo))
	}
	token := types.PushToken{}
	if err := c.call(ctx, request{
		name:   "AuthorizePush",
		method: http.MethodGet,
		url:    c.config.Endpoint + "/auth/v1/token",
		query:  query,
		retry:  true,
	}, &token); err != nil {
		return "", err
	}
	return token.Token, nil
}
