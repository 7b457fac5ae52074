package lifecycle

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"
)

// Responder delivers the terminal signal of an event.
type Responder interface {
	Send(ctx context.Context, responseURL string, resp Response) error
}

func NewHTTPResponder(client *http.Client) *HTTPResponder {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPResponder{client: client}
}

// HTTPResponder PUTs the response json to the presigned callback url.
type HTTPResponder struct {
	client *http.Client
}

func (r *HTTPResponder) Send(ctx context.Context, responseURL string, resp Response) error {
	body, err := json.Marshal(resp)
	if err != nil {
		return errors.Wrap(err, "failed to encode response")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, responseURL, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to create callback request")
	}
	// the presigned url is signed without a content type
	req.Header.Set("Content-Type", "")
	req.ContentLength = int64(len(body))

	res, err := r.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send response")
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)

	if res.StatusCode/100 != 2 {
		return errors.Errorf("callback answered %d", res.StatusCode)
	}
	return nil
}
