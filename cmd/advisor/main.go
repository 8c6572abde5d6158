package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentity"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"strategy-advisor/internal/config"
	"strategy-advisor/internal/integrations/agentcore"
	"strategy-advisor/internal/integrations/cognito"
	"strategy-advisor/internal/integrations/paramstore"
	"strategy-advisor/internal/tui"
	"strategy-advisor/internal/usecase"
)

var (
	envFile  string
	logFile  string
	override config.Settings
)

var rootCmd = &cobra.Command{
	Use:   "advisor",
	Short: "Investment strategy advisor in the terminal",
	Long: `Sign in with your Cognito user, pick a life stage and stream
investment strategies from the advisor agent.

Settings come from the environment (optionally a .env file) and can be
overridden with flags. When --param-prefix is set, missing values are read
from SSM Parameter Store.`,
	SilenceUsage: true,
	RunE:         runAdvisor,
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	f.StringVar(&logFile, "log-file", "", "write logs to this file (default: discard)")
	f.StringVar(&override.Region, "region", "", "AWS region")
	f.StringVar(&override.RuntimeARN, "runtime-arn", "", "agent runtime ARN")
	f.StringVar(&override.AgentEndpoint, "endpoint", "", "agent runtime endpoint override")
	f.StringVar(&override.IdentityPoolID, "identity-pool-id", "", "Cognito identity pool id")
	f.StringVar(&override.UserPoolID, "user-pool-id", "", "Cognito user pool id")
	f.StringVar(&override.UserPoolClientID, "client-id", "", "Cognito user pool app client id")
	f.StringVar(&override.ParamPrefix, "param-prefix", "", "SSM parameter prefix for missing settings")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runAdvisor(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// A missing default .env is fine; a missing explicit one is not.
	if err := godotenv.Load(envFile); err != nil {
		if !errors.Is(err, fs.ErrNotExist) || cmd.Flags().Changed("env-file") {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	logger, closeLog, err := newLogger(logFile)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	settings := applyFlags(cmd, config.FromEnv(os.Getenv))

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(settings.Region))
	if err != nil {
		return fmt.Errorf("load AWS config: %w", err)
	}
	if settings.Region == "" {
		settings.Region = cfg.Region
	}
	if settings.NeedsLookup() {
		params, err := paramstore.New(awsssm.NewFromConfig(cfg))
		if err != nil {
			return err
		}
		if settings, err = settings.Resolve(ctx, params); err != nil {
			return err
		}
	}
	if err := settings.Validate(true); err != nil {
		return err
	}

	// Cognito calls are authorized by the user's tokens, not by whatever
	// credentials the shell happens to carry.
	anonymous := func(o *cip.Options) { o.Credentials = aws.AnonymousCredentials{} }
	users, err := cognito.NewUserPool(cip.NewFromConfig(cfg, anonymous), settings.UserPoolClientID)
	if err != nil {
		return err
	}
	identities, err := cognito.NewIdentityPool(
		cognitoidentity.NewFromConfig(cfg, func(o *cognitoidentity.Options) { o.Credentials = aws.AnonymousCredentials{} }),
		settings.Region, settings.IdentityPoolID, settings.UserPoolID,
	)
	if err != nil {
		return err
	}

	signer, err := agentcore.NewSigner(agentcore.Config{
		Region:     settings.Region,
		RuntimeARN: settings.RuntimeARN,
		Endpoint:   settings.AgentEndpoint,
	})
	if err != nil {
		return err
	}
	agent, err := agentcore.NewClient(signer)
	if err != nil {
		return err
	}

	model, err := tui.New(ctx, tui.Deps{
		Auth: users,
		Sessions: func(idToken string) usecase.CredentialProvider {
			return identities.Session(idToken)
		},
		Agent:  agent,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	logger.Info("advisor starting", "region", settings.Region, "runtimeArn", settings.RuntimeARN)
	_, err = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

// applyFlags lets explicitly set flags win over the environment.
func applyFlags(cmd *cobra.Command, s config.Settings) config.Settings {
	set := func(flag string, dst *string, v string) {
		if cmd.Flags().Changed(flag) {
			*dst = v
		}
	}
	set("region", &s.Region, override.Region)
	set("runtime-arn", &s.RuntimeARN, override.RuntimeARN)
	set("endpoint", &s.AgentEndpoint, override.AgentEndpoint)
	set("identity-pool-id", &s.IdentityPoolID, override.IdentityPoolID)
	set("user-pool-id", &s.UserPoolID, override.UserPoolID)
	set("client-id", &s.UserPoolClientID, override.UserPoolClientID)
	set("param-prefix", &s.ParamPrefix, strings.TrimRight(strings.TrimSpace(override.ParamPrefix), "/"))
	return s
}

func newLogger(path string) (*slog.Logger, func(), error) {
	if path == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return logger, func() { _ = f.Close() }, nil
}
