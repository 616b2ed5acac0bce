package utils

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// SecretsDir is where Docker mounts secrets.
var SecretsDir = "/run/secrets"

// ReadSecret reads a Docker secret file.
func ReadSecret(secretName string) (string, error) {
	filePath := fmt.Sprintf("%s/%s", SecretsDir, secretName)
	secretBytes, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read secret file %s: %w", filePath, err)
	}
	secret := strings.TrimSpace(string(secretBytes))
	if secret == "" {
		return "", fmt.Errorf("secret file %s is empty", filePath)
	}
	return secret, nil
}

// ReadSecretOrEnv prefers the Docker secret and falls back to the environment variable
// envName, for local runs without secrets. A missing file is not an error here.
func ReadSecretOrEnv(secretName, envName string) (string, error) {
	secret, err := ReadSecret(secretName)
	if err == nil {
		return secret, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}
	return strings.TrimSpace(os.Getenv(envName)), nil
}
