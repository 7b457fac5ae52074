package identity

import (
	"context"
	"crypto/x509"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

const accountRole = "account"

type ctxKey int

const (
	ctxAccountKey ctxKey = iota
	ctxPrincipalKey
)

// WithAccount attaches an authenticated account id. Only transport layers
// that verified the caller may use it.
func WithAccount(ctx context.Context, accountId string, principal string) context.Context {
	ctx = context.WithValue(ctx, ctxAccountKey, accountId)
	return context.WithValue(ctx, ctxPrincipalKey, principal)
}

// AccountFromContext returns the authenticated account id, if any.
func AccountFromContext(ctx context.Context) (string, bool) {
	acct, ok := ctx.Value(ctxAccountKey).(string)
	return acct, ok && acct != ""
}

// PrincipalFromContext returns the raw principal the account came from,
// a SPIFFE id or a caller ARN.
func PrincipalFromContext(ctx context.Context) string {
	p, _ := ctx.Value(ctxPrincipalKey).(string)
	return p
}

// SpiffeMiddleware resolves the account from the verified client
// certificate. Requests without a usable certificate pass through with no
// identity and are rejected by the handlers.
func SpiffeMiddleware(trustDomain string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			if r.TLS != nil && len(r.TLS.VerifiedChains) > 0 && len(r.TLS.PeerCertificates) > 0 {
				u, acct, err := AccountFromCertificate(r.TLS.PeerCertificates[0], trustDomain)
				if err == nil {
					r = r.WithContext(WithAccount(r.Context(), acct, u.String()))
				}
			}
			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(fn)
	}
}

// AccountFromCertificate validates spiffe://<trust-domain>/account/<id>.
func AccountFromCertificate(cert *x509.Certificate, trustDomain string) (*url.URL, string, error) {
	if len(cert.URIs) != 1 {
		return nil, "", errors.New("exactly one URI SAN is required")
	}
	u := cert.URIs[0]
	if u.Scheme != "spiffe" {
		return nil, "", errors.New("scheme must be spiffe")
	}
	if u.Host != trustDomain {
		return nil, "", errors.Errorf("trust domain must be %q", trustDomain)
	}

	// path: /account/<id>
	parts := strings.Split(strings.TrimPrefix(u.Path, "/"), "/")
	if len(parts) != 2 || parts[0] != accountRole {
		return nil, "", errors.New("path must be /account/<id>")
	}
	id := parts[1]
	if id == "" {
		return nil, "", errors.New("account id empty")
	}
	if !isSafeID(id) {
		return nil, "", errors.New("invalid characters in account id")
	}
	return u, id, nil
}

func isSafeID(s string) bool {
	for _, c := range s {
		if !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '-') {
			return false
		}
	}
	return true
}
