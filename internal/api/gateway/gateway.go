package gateway

import (
	"bytes"
	"cidrvend/internal/api/http/identity"
	"context"
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// picked up by the chi RequestID middleware
const requestIdHeader = "X-Request-Id"

func NewHandler(mux http.Handler, stripBaseMappings int, logs *zap.Logger) *Handler {
	return &Handler{
		mux:               mux,
		stripBaseMappings: stripBaseMappings,
		logs:              logs,
	}
}

// Handler serves API Gateway proxy events through a regular http.Handler.
// The caller identity is taken from the request context API Gateway
// filled in after verifying the SigV4 signature.
type Handler struct {
	mux               http.Handler
	stripBaseMappings int
	logs              *zap.Logger
}

// Handle takes invocations from the API Gateway and handles them as HTTP
// requests.
func (h *Handler) Handle(ctx context.Context, ev events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	r, err := h.toRequest(ctx, ev)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}

	w := &bufferedResponse{
		statusCode: http.StatusOK, // like standard lib, assume 200
		header:     http.Header{},
		Buffer:     bytes.NewBuffer(nil),
	}
	h.mux.ServeHTTP(w, r)

	resp := events.APIGatewayProxyResponse{
		StatusCode: w.statusCode,
		Body:       w.Buffer.String(),
		Headers:    map[string]string{},
	}
	for k, v := range w.header {
		resp.Headers[k] = strings.Join(v, ",")
	}

	h.logs.Debug("gateway request served",
		zap.String("method", ev.HTTPMethod),
		zap.String("path", ev.Path),
		zap.String("request_id", ev.RequestContext.RequestID),
		zap.Int("status", resp.StatusCode))
	return resp, nil
}

func (h *Handler) toRequest(ctx context.Context, ev events.APIGatewayProxyRequest) (*http.Request, error) {
	loc, err := url.Parse(ev.Path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse request path")
	}

	// strip path base
	if h.stripBaseMappings > 0 {
		comps := strings.SplitN(strings.TrimLeft(loc.Path, "/"), "/", h.stripBaseMappings+1)
		if len(comps) > h.stripBaseMappings {
			loc.Path = "/" + comps[h.stripBaseMappings]
		} else {
			loc.Path = "/"
		}
	}

	q := loc.Query()
	for k, vals := range ev.MultiValueQueryStringParameters {
		q[k] = vals
	}
	for k, v := range ev.QueryStringParameters {
		if _, ok := q[k]; !ok {
			q.Set(k, v)
		}
	}
	loc.RawQuery = q.Encode()

	body := []byte(ev.Body)
	if ev.IsBase64Encoded {
		body, err = base64.StdEncoding.DecodeString(ev.Body)
		if err != nil {
			return nil, errors.Wrap(err, "failed to decode request body")
		}
	}

	r, err := http.NewRequestWithContext(ctx, ev.HTTPMethod, loc.String(), bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to turn %s %s into http request", ev.HTTPMethod, ev.Path)
	}

	for k, val := range ev.Headers {
		for _, v := range strings.Split(val, ",") {
			r.Header.Add(k, strings.TrimSpace(v))
		}
	}
	if ev.RequestContext.RequestID != "" {
		r.Header.Set(requestIdHeader, ev.RequestContext.RequestID)
	}
	r.RemoteAddr = ev.RequestContext.Identity.SourceIP

	if acct := ev.RequestContext.Identity.AccountID; acct != "" {
		r = r.WithContext(identity.WithAccount(r.Context(), acct, ev.RequestContext.Identity.UserArn))
	}
	return r, nil
}

// bufferedResponse implements the response writer interface but buffers the
// body, which the proxy response needs as a string anyway.
type bufferedResponse struct {
	statusCode int
	header     http.Header
	*bytes.Buffer
}

func (br *bufferedResponse) Header() http.Header    { return br.header }
func (br *bufferedResponse) WriteHeader(status int) { br.statusCode = status }
