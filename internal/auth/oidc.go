package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	oidc "github.com/coreos/go-oidc/v3/oidc"
)

// OIDCVerifier validates ID tokens issued by an OpenID Connect provider
// (e.g. https://securetoken.google.com/<project>).
//
// Provider discovery happens on first use behind a mutex. A failed discovery
// is not cached, so the next request retries; a successful one is reused for
// the life of the process.
type OIDCVerifier struct {
	issuer   string
	audience string
	client   *http.Client

	mu       sync.Mutex
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier configures a verifier without touching the network.
func NewOIDCVerifier(issuer, audience string, timeout time.Duration) (*OIDCVerifier, error) {
	if strings.TrimSpace(issuer) == "" || strings.TrimSpace(audience) == "" {
		return nil, errors.New("oidc issuer and audience required")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &OIDCVerifier{
		issuer:   issuer,
		audience: audience,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

// Init performs provider discovery if it has not succeeded yet. Calling it at
// startup is optional.
func (v *OIDCVerifier) Init(ctx context.Context) error {
	_, err := v.get(ctx)
	return err
}

func (v *OIDCVerifier) get(ctx context.Context) (*oidc.IDTokenVerifier, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.verifier != nil {
		return v.verifier, nil
	}

	// Key fetches outlive this request, so the provider gets a detached
	// context carrying only the HTTP client.
	pctx := oidc.ClientContext(context.WithoutCancel(ctx), v.client)
	provider, err := oidc.NewProvider(pctx, v.issuer)
	if err != nil {
		return nil, fmt.Errorf("%w: discover oidc provider: %v", ErrProviderUnavailable, err)
	}
	v.verifier = provider.Verifier(&oidc.Config{ClientID: v.audience})
	return v.verifier, nil
}

// Verify validates raw and returns the token subject.
func (v *OIDCVerifier) Verify(ctx context.Context, raw string) (string, error) {
	verifier, err := v.get(ctx)
	if err != nil {
		return "", err
	}
	idToken, err := verifier.Verify(oidc.ClientContext(ctx, v.client), raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if strings.TrimSpace(idToken.Subject) == "" {
		return "", fmt.Errorf("%w: missing subject", ErrUnauthenticated)
	}
	return idToken.Subject, nil
}
