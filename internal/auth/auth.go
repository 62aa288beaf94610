package auth

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"apimapper/internal/util"
)

// TokenEnvVar is read for bearer auth when no token credential is configured.
const TokenEnvVar = "APIMAPPER_TOKEN"

// ApplyAuthHeaders sets request headers for authentication types that use them directly.
// It handles "none", "api_key", "bearer", "basic" and the initial credentials for "ntlm".
// OAuth2 is handled by the client transport.
func ApplyAuthHeaders(req *http.Request, authType string, credentials map[string]string) error {
	switch strings.ToLower(authType) {
	case "", "none":
		return nil
	case "api_key":
		key, ok := credentials["api_key"]
		if !ok {
			return fmt.Errorf("api_key authentication selected, but 'api_key' not found in credentials")
		}
		header := credentials["header"]
		if header == "" {
			req.Header.Set("Authorization", "Bearer "+util.ExpandEnvUniversal(key))
			return nil
		}
		req.Header.Set(header, util.ExpandEnvUniversal(key))
	case "bearer":
		token := util.ExpandEnvUniversal(credentials["token"])
		if token == "" {
			token = GetAPIToken()
		}
		if token == "" {
			return fmt.Errorf("bearer authentication selected, but neither a 'token' credential nor %s is set", TokenEnvVar)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	case "basic":
		username, ok1 := credentials["username"]
		password, ok2 := credentials["password"]
		if !ok1 || !ok2 {
			return fmt.Errorf("basic authentication selected, but 'username' or 'password' not found in credentials")
		}
		req.SetBasicAuth(util.ExpandEnvUniversal(username), util.ExpandEnvUniversal(password))
	case "ntlm":
		// The ntlmssp transport starts the handshake from basic credentials.
		username, ok1 := credentials["username"]
		password, ok2 := credentials["password"]
		if !ok1 || !ok2 {
			return fmt.Errorf("ntlm authentication selected, but 'username' or 'password' not found in credentials")
		}
		req.SetBasicAuth(util.ExpandEnvUniversal(username), util.ExpandEnvUniversal(password))
	case "oauth2":
		return nil
	default:
		return fmt.Errorf("unsupported authentication type configured: %s", authType)
	}
	return nil
}

// GetAPIToken retrieves the bearer token from the environment.
func GetAPIToken() string {
	return os.Getenv(TokenEnvVar)
}

// NeedsCredentials checks if a given auth type requires credentials map entry.
func NeedsCredentials(authType string) bool {
	switch strings.ToLower(authType) {
	case "api_key", "basic", "ntlm", "oauth2":
		return true
	default:
		return false
	}
}
