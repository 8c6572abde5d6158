// Package config loads the advisor settings shared by the Lambda and the
// terminal page.
package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	EnvRegion           = "AWS_REGION"
	EnvRuntimeARN       = "AGENT_RUNTIME_ARN"
	EnvAgentEndpoint    = "AGENT_ENDPOINT"
	EnvIdentityPoolID   = "IDENTITY_POOL_ID"
	EnvUserPoolID       = "USER_POOL_ID"
	EnvUserPoolClientID = "USER_POOL_CLIENT_ID"
	EnvHistoryTable     = "HISTORY_TABLE"
	EnvParamPrefix      = "PARAM_PREFIX"
)

// Parameter names under PARAM_PREFIX.
const (
	ParamRuntimeARN       = "agent_runtime_arn"
	ParamIdentityPoolID   = "identity_pool_id"
	ParamUserPoolID       = "user_pool_id"
	ParamUserPoolClientID = "user_pool_client_id"
	ParamHistoryTable     = "history_table"
)

// Lookuper returns the parameters stored under a prefix.
type Lookuper interface {
	Lookup(ctx context.Context, prefix string) (map[string]string, error)
}

// Settings are the environment-supplied constants of one deployment.
type Settings struct {
	Region           string
	RuntimeARN       string
	AgentEndpoint    string
	IdentityPoolID   string
	UserPoolID       string
	UserPoolClientID string
	HistoryTable     string
	ParamPrefix      string
}

// FromEnv reads Settings through getenv (os.Getenv in production).
func FromEnv(getenv func(string) string) Settings {
	get := func(key string) string { return strings.TrimSpace(getenv(key)) }
	return Settings{
		Region:           get(EnvRegion),
		RuntimeARN:       get(EnvRuntimeARN),
		AgentEndpoint:    get(EnvAgentEndpoint),
		IdentityPoolID:   get(EnvIdentityPoolID),
		UserPoolID:       get(EnvUserPoolID),
		UserPoolClientID: get(EnvUserPoolClientID),
		HistoryTable:     get(EnvHistoryTable),
		ParamPrefix:      strings.TrimRight(get(EnvParamPrefix), "/"),
	}
}

// NeedsLookup reports whether a Parameter Store read could fill a required
// gap. The optional history table never triggers a read on its own; it is
// filled only when a read happens anyway.
func (s Settings) NeedsLookup() bool {
	if s.ParamPrefix == "" {
		return false
	}
	return s.RuntimeARN == "" || s.IdentityPoolID == "" || s.UserPoolID == "" || s.UserPoolClientID == ""
}

// Resolve fills empty fields from Parameter Store. Values already set in
// the environment win.
func (s Settings) Resolve(ctx context.Context, params Lookuper) (Settings, error) {
	if !s.NeedsLookup() {
		return s, nil
	}
	if params == nil {
		return s, errors.New("config: parameter lookup must not be nil")
	}
	values, err := params.Lookup(ctx, s.ParamPrefix)
	if err != nil {
		return s, fmt.Errorf("config: load parameters: %w", err)
	}
	fill := func(dst *string, key string) {
		if *dst == "" {
			*dst = strings.TrimSpace(values[key])
		}
	}
	fill(&s.RuntimeARN, ParamRuntimeARN)
	fill(&s.IdentityPoolID, ParamIdentityPoolID)
	fill(&s.UserPoolID, ParamUserPoolID)
	fill(&s.UserPoolClientID, ParamUserPoolClientID)
	fill(&s.HistoryTable, ParamHistoryTable)
	return s, nil
}

// Validate checks the settings every surface needs. The user pool client
// id is only needed where the user signs in with a password.
func (s Settings) Validate(needClientID bool) error {
	var missing []string
	if s.Region == "" {
		missing = append(missing, EnvRegion)
	}
	if s.RuntimeARN == "" {
		missing = append(missing, EnvRuntimeARN)
	}
	if s.IdentityPoolID == "" {
		missing = append(missing, EnvIdentityPoolID)
	}
	if s.UserPoolID == "" {
		missing = append(missing, EnvUserPoolID)
	}
	if needClientID && s.UserPoolClientID == "" {
		missing = append(missing, EnvUserPoolClientID)
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing settings: %s", strings.Join(missing, ", "))
	}
	return nil
}
