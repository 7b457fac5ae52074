package lifecycle

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
)

// VendingClient calls the allocation service on behalf of one event.
type VendingClient interface {
	Allocate(ctx context.Context) (map[string]string, error)
	Bind(ctx context.Context, cidrBlock string, vpcId string) (map[string]string, error)
	Release(ctx context.Context, cidrBlock string) error
}

// StatusError is a non-2xx answer of the allocation service.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return "vending machine answered " + http.StatusText(e.Code) + ": " + e.Message
}

// IsNotFound reports whether the service had no record for the block.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// RequestSigner authenticates an outgoing request in place.
type RequestSigner interface {
	Sign(r *http.Request, body io.ReadSeeker) error
}

// Client facilitates communication with the allocation service.
type Client struct {
	ep     *url.URL
	region string
	http   *http.Client
	signer RequestSigner
}

// NewClient sets up a client for endpoint. region is added to every call;
// signer may be nil when the transport itself authenticates (mtls).
func NewClient(endpoint string, region string, httpClient *http.Client, signer RequestSigner) (*Client, error) {
	ep, err := url.Parse(endpoint)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse provided API endpoint")
	}
	if ep.Scheme == "" || ep.Host == "" {
		return nil, errors.Errorf("API endpoint %q must be an absolute url", endpoint)
	}
	if region == "" {
		return nil, errors.New("region is required")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{ep: ep, region: region, http: httpClient, signer: signer}, nil
}

func (c *Client) Allocate(ctx context.Context) (map[string]string, error) {
	out := map[string]string{}
	if err := c.doRequest(ctx, http.MethodPost, url.Values{}, &out); err != nil {
		return nil, errors.Wrap(err, "failed to allocate block")
	}
	return out, nil
}

func (c *Client) Bind(ctx context.Context, cidrBlock string, vpcId string) (map[string]string, error) {
	params := url.Values{}
	params.Set("cidr_block", cidrBlock)
	params.Set("vpc_id", vpcId)

	out := map[string]string{}
	if err := c.doRequest(ctx, http.MethodPatch, params, &out); err != nil {
		return nil, errors.Wrapf(err, "failed to bind %s", cidrBlock)
	}
	return out, nil
}

func (c *Client) Release(ctx context.Context, cidrBlock string) error {
	params := url.Values{}
	params.Set("cidr_block", cidrBlock)

	out := map[string]string{}
	if err := c.doRequest(ctx, http.MethodDelete, params, &out); err != nil {
		return errors.Wrapf(err, "failed to release %s", cidrBlock)
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, method string, params url.Values, out any) error {
	loc := *c.ep
	q := loc.Query()
	for k, v := range params {
		q[k] = v
	}
	q.Set("region", c.region)
	loc.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, method, loc.String(), nil)
	if err != nil {
		return errors.Wrap(err, "failed to create HTTP request")
	}
	req.Header.Set("Content-Type", "application/json")

	if c.signer != nil {
		if err := c.signer.Sign(req, nil); err != nil {
			return errors.Wrap(err, "failed to sign HTTP request")
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to execute HTTP request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}

	if resp.StatusCode/100 != 2 {
		var fail struct {
			Message string `json:"message"`
		}
		msg := string(bytes.TrimSpace(respBody))
		if json.Unmarshal(respBody, &fail) == nil && fail.Message != "" {
			msg = fail.Message
		}
		return &StatusError{Code: resp.StatusCode, Message: msg}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return errors.Wrapf(err, "unable to decode response body: '%s'", respBody)
	}
	return nil
}
