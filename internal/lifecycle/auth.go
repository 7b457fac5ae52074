package lifecycle

import (
	"crypto/tls"
	"crypto/x509"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws/credentials"
	v4 "github.com/aws/aws-sdk-go/aws/signer/v4"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/pkg/errors"
)

const executeApiService = "execute-api"

// SigV4Signer signs requests for API Gateway IAM authorization.
type SigV4Signer struct {
	signer *v4.Signer
	region string
	clock  clock.Clock
}

func NewSigV4Signer(creds *credentials.Credentials, region string, clk clock.Clock) *SigV4Signer {
	return &SigV4Signer{
		signer: v4.NewSigner(creds),
		region: region,
		clock:  clk,
	}
}

func (s *SigV4Signer) Sign(r *http.Request, body io.ReadSeeker) error {
	_, err := s.signer.Sign(r, body, executeApiService, s.region, s.clock.Now())
	return err
}

// SigningRegion returns the region of an endpoint shaped like
// https://{api-id}.execute-api.{region}.amazonaws.com/..., or fallback.
func SigningRegion(endpoint string, fallback string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return fallback
	}
	parts := strings.Split(u.Hostname(), ".")
	if len(parts) >= 4 && parts[1] == executeApiService && parts[2] != "" {
		return parts[2]
	}
	return fallback
}

// NewMTLSClient returns a client presenting the certificate at certPath
// and trusting only the CA at caPath.
func NewMTLSClient(caPath, certPath, keyPath string, timeout time.Duration) (*http.Client, error) {
	caPem, err := os.ReadFile(caPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read CA certificate")
	}

	pool := x509.NewCertPool()
	if ok := pool.AppendCertsFromPEM(caPem); !ok {
		return nil, errors.New("failed to append CA cert")
	}

	clientCert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load client key pair")
	}

	tlsCfg := &tls.Config{
		MinVersion:   tls.VersionTLS13,
		RootCAs:      pool,
		Certificates: []tls.Certificate{clientCert},
	}

	transport := &http.Transport{
		TLSClientConfig: tlsCfg,
	}

	return &http.Client{Transport: transport, Timeout: timeout}, nil
}
