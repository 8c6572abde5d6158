package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentity"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"strategy-advisor/handler"
	"strategy-advisor/internal/config"
	"strategy-advisor/internal/integrations/agentcore"
	"strategy-advisor/internal/integrations/cognito"
	"strategy-advisor/internal/integrations/paramstore"
	"strategy-advisor/internal/repository"
	"strategy-advisor/internal/usecase"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// ---- Configuration (read only here) ----
	settings := config.FromEnv(os.Getenv)

	// ---- AWS SDK config ----
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(settings.Region))
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}
	if settings.Region == "" {
		settings.Region = cfg.Region
	}

	if settings.NeedsLookup() {
		params, err := paramstore.New(awsssm.NewFromConfig(cfg))
		if err != nil {
			slog.Error("failed to create SSM client", "err", err)
			os.Exit(1)
		}
		settings, err = settings.Resolve(ctx, params)
		if err != nil {
			slog.Error("failed to resolve settings", "prefix", settings.ParamPrefix, "err", err)
			os.Exit(1)
		}
	}
	if err := settings.Validate(false); err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	// Identity-pool calls are authorized by the caller's ID token, never by
	// the function's role.
	identityClient := cognitoidentity.NewFromConfig(cfg, func(o *cognitoidentity.Options) {
		o.Credentials = aws.AnonymousCredentials{}
	})
	pool, err := cognito.NewIdentityPool(identityClient, settings.Region, settings.IdentityPoolID, settings.UserPoolID)
	if err != nil {
		slog.Error("failed to create identity pool", "err", err)
		os.Exit(1)
	}

	signer, err := agentcore.NewSigner(agentcore.Config{
		Region:     settings.Region,
		RuntimeARN: settings.RuntimeARN,
		Endpoint:   settings.AgentEndpoint,
	})
	if err != nil {
		slog.Error("failed to create request signer", "err", err)
		os.Exit(1)
	}
	agent, err := agentcore.NewClient(signer)
	if err != nil {
		slog.Error("failed to create agent client", "err", err)
		os.Exit(1)
	}

	opts := []handler.Option{handler.WithLogger(logger)}
	if settings.HistoryTable != "" {
		history, err := repository.New(awsdynamodb.NewFromConfig(cfg), settings.HistoryTable)
		if err != nil {
			slog.Error("failed to create history client", "err", err)
			os.Exit(1)
		}
		opts = append(opts, handler.WithHistory(history))
	}

	// ---- Handler ----
	credentials := func(idToken string) usecase.CredentialProvider {
		return pool.Session(idToken)
	}
	h, err := handler.NewHandler(credentials, agent, opts...)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}
