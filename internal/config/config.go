package config

import (
	"bytes"
	"io"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	// EnvPrefix is prepended to every key. Unprefixed keys are accepted as a
	// fallback so the variables set by the Lambda runtime (AWS_REGION) work.
	EnvPrefix = "CIDRVEND"

	// FileEnv names an optional yaml file read before the environment.
	FileEnv = "CIDRVEND_CONFIG_FILE"
)

const (
	BackendDynamo = "dynamodb"
	BackendBolt   = "bolt"
	BackendFile   = "file"

	AuthSigV4 = "sigv4"
	AuthMTLS  = "mtls"
)

// ConfigurationError aborts startup.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Err.Error()
}

func (e *ConfigurationError) Cause() error  { return e.Err }
func (e *ConfigurationError) Unwrap() error { return e.Err }

func configErr(format string, args ...any) error {
	return &ConfigurationError{Err: errors.Errorf(format, args...)}
}

// ServiceConf configures the allocation service.
type ServiceConf struct {
	MasterCidrBlock string `envconfig:"MASTER_CIDR_BLOCK" yaml:"master_cidr_block"`
	VpcNetmask      int    `envconfig:"VPC_NETMASK" yaml:"vpc_netmask"`
	SubnetNetmask   int    `envconfig:"SUBNET_NETMASK" yaml:"subnet_netmask"`

	StoreBackend string `envconfig:"STORE_BACKEND" yaml:"store_backend"`
	TableName    string `envconfig:"TABLE_NAME" yaml:"table_name"`
	StorePath    string `envconfig:"STORE_PATH" yaml:"store_path"`
	AWSRegion    string `envconfig:"AWS_REGION" yaml:"aws_region"`

	ListenAddr  string `envconfig:"LISTEN_ADDR" yaml:"listen_addr"`
	TLSCert     string `envconfig:"TLS_CERT" yaml:"tls_cert"`
	TLSKey      string `envconfig:"TLS_KEY" yaml:"tls_key"`
	TLSClientCA string `envconfig:"TLS_CLIENT_CA" yaml:"tls_client_ca"`
	TrustDomain string `envconfig:"TRUST_DOMAIN" yaml:"trust_domain"`

	// StripBaseMappings drops leading path segments before routing, for
	// custom domains with base path mappings. API Gateway proxy events carry
	// the resource path without the stage, so this is 0 by default.
	StripBaseMappings int `envconfig:"STRIP_BASE_MAPPINGS" yaml:"strip_base_mappings"`

	LogLevel       string `envconfig:"LOG_LEVEL" yaml:"log_level"`
	LogDevelopment bool   `envconfig:"LOG_DEVELOPMENT" yaml:"log_development"`
}

// ClientConf configures the lifecycle client.
type ClientConf struct {
	VendingMachineAPI string        `envconfig:"VENDING_MACHINE_API" yaml:"vending_machine_api"`
	AuthMode          string        `envconfig:"AUTH_MODE" yaml:"auth_mode"`
	AWSRegion         string        `envconfig:"AWS_REGION" yaml:"aws_region"`
	TLSCA             string        `envconfig:"TLS_CA" yaml:"tls_ca"`
	TLSCert           string        `envconfig:"TLS_CERT" yaml:"tls_cert"`
	TLSKey            string        `envconfig:"TLS_KEY" yaml:"tls_key"`
	RequestTimeout    time.Duration `envconfig:"REQUEST_TIMEOUT" yaml:"request_timeout"`

	LogLevel       string `envconfig:"LOG_LEVEL" yaml:"log_level"`
	LogDevelopment bool   `envconfig:"LOG_DEVELOPMENT" yaml:"log_development"`
}

// ServiceConfFromEnv fills the service configuration from the optional
// file and then the process environment.
func ServiceConfFromEnv() (*ServiceConf, error) {
	cfg := &ServiceConf{}
	if err := load(cfg); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ClientConfFromEnv fills the lifecycle client configuration.
func ClientConfFromEnv() (*ClientConf, error) {
	cfg := &ClientConf{}
	if err := load(cfg); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func load(cfg any) error {
	if path := os.Getenv(FileEnv); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return &ConfigurationError{Err: errors.Wrap(err, "failed to read config file")}
		}
		if err := yamlUnmarshal(b, cfg); err != nil {
			return &ConfigurationError{Err: errors.Wrapf(err, "failed to parse %s", path)}
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return &ConfigurationError{Err: errors.Wrap(err, "failed to process env config")}
	}
	return nil
}

func (c *ServiceConf) setDefaults() {
	if c.StoreBackend == "" {
		c.StoreBackend = BackendDynamo
	}
	if c.ListenAddr == "" {
		c.ListenAddr = ":7780"
	}
	if c.TrustDomain == "" {
		c.TrustDomain = "cidrvend"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *ServiceConf) Validate() error {
	if c.MasterCidrBlock == "" {
		return configErr("MASTER_CIDR_BLOCK is required")
	}
	if c.VpcNetmask == 0 {
		return configErr("VPC_NETMASK is required")
	}
	if c.SubnetNetmask == 0 {
		return configErr("SUBNET_NETMASK is required")
	}

	switch c.StoreBackend {
	case BackendDynamo:
		if c.TableName == "" {
			return configErr("TABLE_NAME is required for the %s backend", c.StoreBackend)
		}
	case BackendBolt, BackendFile:
	default:
		return configErr("unknown store backend %q", c.StoreBackend)
	}

	if (c.TLSCert == "") != (c.TLSKey == "") {
		return configErr("TLS_CERT and TLS_KEY must be set together")
	}
	if c.TLSClientCA != "" && c.TLSCert == "" {
		return configErr("TLS_CLIENT_CA requires TLS_CERT and TLS_KEY")
	}
	if c.StripBaseMappings < 0 {
		return configErr("STRIP_BASE_MAPPINGS must not be negative")
	}
	return nil
}

func (c *ClientConf) setDefaults() {
	if c.AuthMode == "" {
		c.AuthMode = AuthSigV4
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *ClientConf) Validate() error {
	if c.VendingMachineAPI == "" {
		return configErr("VENDING_MACHINE_API is required")
	}

	switch c.AuthMode {
	case AuthSigV4:
	case AuthMTLS:
		if c.TLSCA == "" || c.TLSCert == "" || c.TLSKey == "" {
			return configErr("TLS_CA, TLS_CERT and TLS_KEY are required for mtls auth")
		}
		// sigv4 may still take the region from the aws session
		if c.AWSRegion == "" {
			return configErr("AWS_REGION is required for mtls auth")
		}
	default:
		return configErr("unknown auth mode %q", c.AuthMode)
	}
	return nil
}

func yamlUnmarshal(b []byte, cfg any) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return err
	}
	return nil
}
