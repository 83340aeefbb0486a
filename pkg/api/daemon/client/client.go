// New and the client type are based on https://github.com/rootless-containers/rootlesskit/blob/master/pkg/api/client/client.go v0.14.6
// The code is licensed under Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/can-bridge/udp2can/pkg/api"
)

type Client interface {
	HTTPClient() *http.Client
	MappingManager() *MappingManager
}

// New creates a client.
// socketPath is a path to the UNIX socket, without unix:// prefix.
func New(socketPath string) (Client, error) {
	if _, err := os.Stat(socketPath); err != nil {
		return nil, err
	}
	hc := &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", socketPath)
			},
		},
	}
	return NewWithHTTPClient(hc), nil
}

func NewWithHTTPClient(hc *http.Client) Client {
	return &client{
		Client:    hc,
		version:   "v1",
		dummyHost: "udp2cand",
	}
}

type client struct {
	*http.Client
	// version is always "v1"
	version   string
	dummyHost string
}

func (c *client) HTTPClient() *http.Client {
	return c.Client
}

func (c *client) MappingManager() *MappingManager {
	return &MappingManager{
		client: c,
	}
}

// maxErrorBody bounds how much of a failed response is read.
const maxErrorBody = 64 * 1024

// StatusError is returned for non-2XX responses of udp2cand.
type StatusError struct {
	StatusCode int
	// Message is api.ErrorJSON.Message, or the raw body when the daemon did
	// not answer with ErrorJSON.
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected HTTP status %s", http.StatusText(e.StatusCode))
	}
	return e.Message
}

// IsNotFound reports whether err is a 404 from udp2cand.
func IsNotFound(err error) bool {
	var serr *StatusError
	return errors.As(err, &serr) && serr.StatusCode == http.StatusNotFound
}

func statusError(resp *http.Response) error {
	if resp.StatusCode/100 == 2 {
		return nil
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	serr := &StatusError{StatusCode: resp.StatusCode}
	var ej api.ErrorJSON
	if err := json.Unmarshal(b, &ej); err == nil && ej.Message != "" {
		serr.Message = ej.Message
	} else {
		serr.Message = strings.TrimSpace(string(b))
	}
	return serr
}

type MappingManager struct {
	*client
}

func (mm *MappingManager) get(ctx context.Context, path string, v interface{}) error {
	u := fmt.Sprintf("http://%s/%s/%s", mm.client.dummyHost, mm.client.version, path)
	req, err := http.NewRequest("GET", u, nil)
	if err != nil {
		return err
	}
	req = req.WithContext(ctx)
	resp, err := mm.client.HTTPClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := statusError(resp); err != nil {
		return err
	}
	dec := json.NewDecoder(resp.Body)
	return dec.Decode(v)
}

func (mm *MappingManager) Ping(ctx context.Context) error {
	var pong string
	if err := mm.get(ctx, "ping", &pong); err != nil {
		return err
	}
	if pong != "pong" {
		return fmt.Errorf("unexpected response expected=%q actual=%q", "pong", pong)
	}
	return nil
}

func (mm *MappingManager) ListMappings(ctx context.Context) ([]api.Mapping, error) {
	var mappings []api.Mapping
	if err := mm.get(ctx, "mappings", &mappings); err != nil {
		return nil, err
	}
	return mappings, nil
}

func (mm *MappingManager) GetMapping(ctx context.Context, index int) (*api.Mapping, error) {
	var mapping api.Mapping
	if err := mm.get(ctx, fmt.Sprintf("mappings/%d", index), &mapping); err != nil {
		return nil, err
	}
	return &mapping, nil
}

func (mm *MappingManager) ListInterfaceMappings(ctx context.Context, id string) ([]api.Mapping, error) {
	var mappings []api.Mapping
	if err := mm.get(ctx, fmt.Sprintf("interfaces/%s/mappings", url.PathEscape(id)), &mappings); err != nil {
		return nil, err
	}
	return mappings, nil
}

func (mm *MappingManager) Groups(ctx context.Context) (*api.Groups, error) {
	var groups api.Groups
	if err := mm.get(ctx, "groups", &groups); err != nil {
		return nil, err
	}
	return &groups, nil
}

func (mm *MappingManager) Info(ctx context.Context) (*api.Info, error) {
	var info api.Info
	if err := mm.get(ctx, "info", &info); err != nil {
		return nil, err
	}
	return &info, nil
}
