package device

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/cockroachdb/errors"
	"github.com/mitchellh/mapstructure"

	"github.com/projecteru2/barge/log"
	"github.com/projecteru2/barge/types"
	"github.com/projecteru2/barge/utils"
)

// Client talks to a supervisor, calls are never retried
type Client struct {
	config     types.DeviceConfig
	baseURL    string
	httpClient *http.Client
}

// New makes a supervisor client for host, a nil httpClient means the shared one
func New(config types.DeviceConfig, host string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = utils.GetHTTPClient()
	}
	baseURL := host
	if !strings.Contains(host, "://") {
		baseURL = "http://" + net.JoinHostPort(host, strconv.Itoa(config.SupervisorPort))
	}
	return &Client{config: config, baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

// NewFactory makes clients sharing one config
func NewFactory(config types.DeviceConfig) Factory {
	return func(host string) API {
		return New(config, host, nil)
	}
}

func (c *Client) request(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "%s %s", method, path), types.ErrDeviceUnreachable)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, errors.Wrapf(types.ErrAPIRequest, "%s %s: %s: %s", method, path, resp.Status, strings.TrimSpace(string(b)))
	}
	return resp, nil
}

// call decodes the json reply into a generic map, then into result
func (c *Client) call(ctx context.Context, method, path string, body any) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()
	resp, err := c.request(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	r := map[string]any{}
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil && err != io.EOF {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	if status, ok := r["status"].(string); ok && status != "success" {
		return nil, errors.Wrapf(types.ErrAPIRequest, "%s %s: %v", method, path, r["message"])
	}
	return r, nil
}

func decode(input, result any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           result,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(decoder.Decode(input))
}

// Ping checks the supervisor is reachable
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()
	resp, err := c.request(ctx, http.MethodGet, "/ping", nil)
	if err != nil {
		return errors.Mark(err, types.ErrDeviceUnreachable)
	}
	return resp.Body.Close()
}

// GetVersion returns the supervisor version
func (c *Client) GetVersion(ctx context.Context) (string, error) {
	r, err := c.call(ctx, http.MethodGet, "/v2/version", nil)
	if err != nil {
		return "", err
	}
	version, _ := r["version"].(string)
	return version, nil
}

// GetDeviceInfo returns arch and device type
func (c *Client) GetDeviceInfo(ctx context.Context) (*types.DeviceInfo, error) {
	r, err := c.call(ctx, http.MethodGet, "/v2/local/device-info", nil)
	if err != nil {
		return nil, err
	}
	info := &types.DeviceInfo{}
	return info, decode(r["info"], info)
}

// GetTargetState returns the whole target state document
func (c *Client) GetTargetState(ctx context.Context) (types.TargetState, error) {
	r, err := c.call(ctx, http.MethodGet, "/v2/local/target-state", nil)
	if err != nil {
		return nil, err
	}
	state, ok := r["state"].(map[string]any)
	if !ok {
		return nil, errors.Wrap(types.ErrAPIRequest, "target state missing in reply")
	}
	return state, nil
}

// SetTargetState replaces the target state
func (c *Client) SetTargetState(ctx context.Context, state types.TargetState) error {
	_, err := c.call(ctx, http.MethodPost, "/v2/local/target-state", state)
	return err
}

// GetStatus returns the state summary
func (c *Client) GetStatus(ctx context.Context) (*types.DeviceStatus, error) {
	r, err := c.call(ctx, http.MethodGet, "/v2/state/status", nil)
	if err != nil {
		return nil, err
	}
	status := &types.DeviceStatus{}
	return status, decode(r, status)
}

// GetLogStream streams device logs, the channel closes with the stream
func (c *Client) GetLogStream(ctx context.Context) (<-chan *types.DeviceLog, error) {
	logger := log.WithFunc("device.GetLogStream").WithField("device", c.baseURL)
	resp, err := c.request(ctx, http.MethodGet, "/v2/local/logs", nil)
	if err != nil {
		return nil, err
	}
	ch := make(chan *types.DeviceLog)
	utils.SentryGo(func() {
		defer close(ch)
		defer resp.Body.Close()
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			l := &types.DeviceLog{}
			if err := json.Unmarshal(line, l); err != nil {
				logger.Warnf(ctx, "bad log line %q: %+v", line, err)
				continue
			}
			select {
			case ch <- l:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			logger.Warnf(ctx, "log stream ended: %+v", err)
		}
	})
	return ch, nil
}

// CheckVersion fails when version is older than minimum
func CheckVersion(version, minimum string) error {
	v, err := semver.NewVersion(version)
	if err != nil {
		return errors.Wrapf(types.ErrOldSupervisor, "unknown version %q", version)
	}
	m, err := semver.NewVersion(minimum)
	if err != nil {
		return errors.WithStack(err)
	}
	if v.LessThan(m) {
		return errors.Wrapf(types.ErrOldSupervisor, "found %s, need %s", version, minimum)
	}
	return nil
}

// Endpoint is the docker engine endpoint of a device
func Endpoint(config types.DeviceConfig, host string) string {
	return fmt.Sprintf("tcp://%s", net.JoinHostPort(host, strconv.Itoa(config.DockerPort)))
}
