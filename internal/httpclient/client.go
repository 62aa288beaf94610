package httpclient

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"apimapper/internal/config"
	"apimapper/internal/logging"
	"apimapper/internal/util"

	"github.com/Azure/go-ntlmssp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// DefaultTimeout is the default HTTP client timeout.
const DefaultTimeout = 30 * time.Second

// NewClient creates an *http.Client configured from the auth settings.
// Handles TLS verification skipping, NTLM, the OAuth2 client credentials flow and cookie jars.
// `jar` allows sharing a cookie jar between clients. If nil, a fresh one is
// created when authCfg.CookieJar is set, otherwise no jar is used.
func NewClient(authCfg config.AuthConfig, timeout time.Duration, jar http.CookieJar) (*http.Client, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	authType := strings.ToLower(authCfg.Type)

	baseTransport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: authCfg.TlsSkipVerify,
		},
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	if authCfg.TlsSkipVerify {
		logging.Logf(logging.Info, "TLS certificate verification is DISABLED for outbound requests")
	}

	var finalTransport http.RoundTripper = baseTransport

	switch authType {
	case "ntlm":
		logging.Logf(logging.Debug, "Configuring NTLM transport")
		if authCfg.Credentials["username"] == "" || authCfg.Credentials["password"] == "" {
			return nil, fmt.Errorf("ntlm authentication requires username and password in auth credentials")
		}
		// NTLM binds to a single connection, so HTTP/2 is off.
		baseTransport.ForceAttemptHTTP2 = false
		baseTransport.TLSNextProto = map[string]func(string, *tls.Conn) http.RoundTripper{}
		finalTransport = ntlmssp.Negotiator{RoundTripper: baseTransport}

	case "oauth2":
		// The OAuth2 client replaces the client entirely but sends its token
		// requests and API calls through baseTransport.
		logging.Logf(logging.Debug, "Configuring OAuth2 client credentials flow")
		creds := authCfg.Credentials
		clientID := util.ExpandEnvUniversal(creds["client_id"])
		clientSecret := util.ExpandEnvUniversal(creds["client_secret"])
		tokenURL := util.ExpandEnvUniversal(creds["token_url"])
		if clientID == "" || clientSecret == "" || tokenURL == "" {
			return nil, fmt.Errorf("oauth2 requires client_id, client_secret, and token_url in credentials")
		}

		oauthConfig := clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
			Scopes:       strings.Fields(creds["scope"]),
		}

		ctxClient := &http.Client{
			Transport: baseTransport,
			Timeout:   timeout,
		}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, ctxClient)

		oauthClient := oauthConfig.Client(ctx)
		oauthClient.Timeout = timeout

		var err error
		if oauthClient.Jar, err = resolveJar(authCfg.CookieJar, jar); err != nil {
			return nil, err
		}
		return oauthClient, nil

	case "basic", "bearer", "api_key", "none", "":
		// Headers are applied per request.

	default:
		return nil, fmt.Errorf("unsupported authentication type '%s' for client creation", authCfg.Type)
	}

	client := &http.Client{
		Timeout:   timeout,
		Transport: finalTransport,
	}

	var err error
	if client.Jar, err = resolveJar(authCfg.CookieJar, jar); err != nil {
		return nil, err
	}
	return client, nil
}

func resolveJar(enabled bool, jar http.CookieJar) (http.CookieJar, error) {
	if !enabled {
		return nil, nil
	}
	if jar != nil {
		logging.Logf(logging.Debug, "Using provided cookie jar")
		return jar, nil
	}
	created, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	logging.Logf(logging.Debug, "Created cookie jar")
	return created, nil
}

// LogCookieJar logs the cookies present in the jar for a given URL.
func LogCookieJar(jar http.CookieJar, urlStr string) {
	if jar == nil || logging.GetLevel() < logging.Debug {
		return
	}
	u, err := url.Parse(urlStr)
	if err != nil {
		logging.Logf(logging.Debug, "Error parsing URL '%s' for logging cookie jar: %v", urlStr, err)
		return
	}
	cookies := jar.Cookies(u)
	if len(cookies) > 0 {
		logging.Logf(logging.Debug, "Cookies in jar for URL '%s': %v", urlStr, cookies)
	} else {
		logging.Logf(logging.Debug, "No cookies in jar for URL '%s'", urlStr)
	}
}
