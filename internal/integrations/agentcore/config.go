package agentcore

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const (
	DefaultService      = "bedrock-agentcore"
	DefaultDomainSuffix = "amazonaws.com"

	// SessionIDHeader lets the runtime group invocations of one session.
	SessionIDHeader = "X-Amzn-Bedrock-AgentCore-Runtime-Session-Id"
)

// Config addresses one agent runtime. It is read-only after NewSigner.
type Config struct {
	Region       string
	RuntimeARN   string
	Service      string
	DomainSuffix string
	// Endpoint overrides scheme and host, e.g. "http://127.0.0.1:8080".
	Endpoint string
}

func (c Config) withDefaults() Config {
	c.Region = strings.TrimSpace(c.Region)
	c.RuntimeARN = strings.TrimSpace(c.RuntimeARN)
	c.Service = strings.TrimSpace(c.Service)
	if c.Service == "" {
		c.Service = DefaultService
	}
	c.DomainSuffix = strings.Trim(strings.TrimSpace(c.DomainSuffix), ".")
	if c.DomainSuffix == "" {
		c.DomainSuffix = DefaultDomainSuffix
	}
	c.Endpoint = strings.TrimRight(strings.TrimSpace(c.Endpoint), "/")
	return c
}

func (c Config) validate() error {
	if c.Region == "" {
		return errors.New("agentcore: region must not be empty")
	}
	if c.RuntimeARN == "" {
		return errors.New("agentcore: runtime ARN must not be empty")
	}
	if c.Endpoint != "" {
		u, err := url.Parse(c.Endpoint)
		if err != nil {
			return fmt.Errorf("agentcore: parse endpoint: %w", err)
		}
		if u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("agentcore: endpoint %q must include scheme and host", c.Endpoint)
		}
	}
	return nil
}

// Hostname is <service>.<region>.<domain-suffix>.
func (c Config) Hostname() string {
	return c.Service + "." + c.Region + "." + c.DomainSuffix
}

// invocationURL returns the runtime invocation URL with the ARN
// percent-encoded as a single path segment.
func (c Config) invocationURL() *url.URL {
	u := &url.URL{Scheme: "https", Host: c.Hostname()}
	if c.Endpoint != "" {
		// validated in NewSigner
		ep, _ := url.Parse(c.Endpoint)
		u.Scheme, u.Host = ep.Scheme, ep.Host
	}
	u.Path = "/runtimes/" + c.RuntimeARN + "/invocations"
	u.RawPath = "/runtimes/" + encodeURIComponent(c.RuntimeARN) + "/invocations"
	return u
}

// encodeURIComponent escapes everything but unreserved characters, so ':'
// and '/' inside an ARN stay inside one segment.
func encodeURIComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
