package awsclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/smithy-go"
)

// ErrSecretNotFound is returned when the named secret does not exist.
var ErrSecretNotFound = errors.New("secret not found")

// LoadAWSConfig initializes and returns an AWS SDK configuration.
func LoadAWSConfig(ctx context.Context, region string) (aws.Config, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return cfg, nil
}

// NewSecretsManagerClient initializes the AWS Secrets Manager client.
func NewSecretsManagerClient(cfg aws.Config) *secretsmanager.Client {
	return secretsmanager.NewFromConfig(cfg)
}

// SecretGetter is the part of the Secrets Manager API used here.
type SecretGetter interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// databaseSecret is the layout of an RDS managed credential secret.
type databaseSecret struct {
	Username string      `json:"username"`
	Password string      `json:"password"`
	Host     string      `json:"host"`
	Port     json.Number `json:"port"`
	DBName   string      `json:"dbname"`
	SSLMode  string      `json:"sslmode"`
}

// ResolveDatabaseSource reads a postgres connection string from the named
// secret. The secret holds either the connection string itself or RDS
// style JSON credentials.
func ResolveDatabaseSource(ctx context.Context, sm SecretGetter, secretName string) (string, error) {
	out, err := sm.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretName),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ResourceNotFoundException" {
			return "", fmt.Errorf("get secret %s: %w", secretName, ErrSecretNotFound)
		}
		return "", fmt.Errorf("get secret %s: %w", secretName, err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value", secretName)
	}

	raw := strings.TrimSpace(*out.SecretString)
	if !strings.HasPrefix(raw, "{") {
		if raw == "" {
			return "", fmt.Errorf("secret %s is empty", secretName)
		}
		return raw, nil
	}

	var secret databaseSecret
	if err := json.Unmarshal([]byte(raw), &secret); err != nil {
		return "", fmt.Errorf("decode secret %s: %w", secretName, err)
	}
	return secret.source()
}

func (s databaseSecret) source() (string, error) {
	if s.Host == "" || s.Username == "" || s.DBName == "" {
		return "", errors.New("database secret requires host, username and dbname")
	}

	host := s.Host
	if s.Port != "" {
		host += ":" + s.Port.String()
	}
	sslMode := s.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(s.Username, s.Password),
		Host:     host,
		Path:     "/" + s.DBName,
		RawQuery: url.Values{"sslmode": []string{sslMode}}.Encode(),
	}
	return u.String(), nil
}
