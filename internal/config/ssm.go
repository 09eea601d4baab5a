package config

import (
	"context"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ParameterFetcher reads a single parameter value.
type ParameterFetcher func(ctx context.Context, name string) (string, error)

// ResolvePassword replaces Password with the value of PasswordParameter when
// one is configured. fetch defaults to AWS SSM Parameter Store.
func (db *PostgresConfig) ResolvePassword(ctx context.Context, fetch ParameterFetcher) error {
	if db.PasswordParameter == "" {
		return nil
	}
	if fetch == nil {
		fetch = SSMParameter
	}

	value, err := fetch(ctx, db.PasswordParameter)
	if err != nil {
		return fmt.Errorf("resolve postgres.password_parameter %q: %w", db.PasswordParameter, err)
	}
	db.Password = value
	return nil
}

// SSMParameter fetches a decrypted parameter from AWS SSM Parameter Store
// using the default credential chain.
func SSMParameter(ctx context.Context, name string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return "", fmt.Errorf("load aws config: %w", err)
	}

	client := ssm.NewFromConfig(cfg)

	decrypt := true
	result, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &name,
		WithDecryption: &decrypt,
	})
	if err != nil {
		return "", fmt.Errorf("get parameter: %w", err)
	}

	if result.Parameter == nil || result.Parameter.Value == nil {
		return "", fmt.Errorf("parameter %q has no value", name)
	}
	return *result.Parameter.Value, nil
}
