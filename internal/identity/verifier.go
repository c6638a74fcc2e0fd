package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

var ErrVerifyFailed = errors.New("identity_verify_failed")

// Claims is what the external identity provider asserts about a token.
type Claims struct {
	UID       string    `json:"uid"`
	Anonymous bool      `json:"is_anonymous"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Verifier is the opaque "verify token -> claims" collaborator. The backend
// never inspects identity tokens itself.
type Verifier interface {
	Verify(ctx context.Context, token string) (Claims, error)
}

// HTTPVerifier posts the token to an external verification endpoint. One
// retry on transport errors or 5xx, mirroring how other outbound
// verification calls in this server behave.
type HTTPVerifier struct {
	URL    string
	Client *http.Client
}

func NewHTTPVerifier(url string) *HTTPVerifier {
	return &HTTPVerifier{URL: url, Client: &http.Client{Timeout: 10 * time.Second}}
}

func (v *HTTPVerifier) Verify(ctx context.Context, token string) (Claims, error) {
	body, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return Claims{}, err
	}
	for attempt := 0; attempt < 2; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.URL, bytes.NewReader(body))
		if err != nil {
			return Claims{}, err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := v.Client.Do(req)
		if err != nil {
			if attempt == 0 && ctx.Err() == nil {
				time.Sleep(200 * time.Millisecond)
				continue
			}
			return Claims{}, err
		}
		if resp.StatusCode >= 500 && attempt == 0 {
			resp.Body.Close()
			time.Sleep(200 * time.Millisecond)
			continue
		}
		var out struct {
			OK        bool      `json:"ok"`
			UID       string    `json:"uid"`
			Anonymous bool      `json:"is_anonymous"`
			ExpiresAt time.Time `json:"expires_at"`
			Reason    string    `json:"reason"`
		}
		decodeErr := json.NewDecoder(resp.Body).Decode(&out)
		resp.Body.Close()
		if decodeErr != nil {
			return Claims{}, decodeErr
		}
		if resp.StatusCode >= 400 || !out.OK {
			return Claims{}, ErrVerifyFailed
		}
		return Claims{UID: out.UID, Anonymous: out.Anonymous, ExpiresAt: out.ExpiresAt}, nil
	}
	return Claims{}, ErrVerifyFailed
}

// Static resolves tokens from a fixed table; used in tests and local dev.
type Static map[string]Claims

func (s Static) Verify(_ context.Context, token string) (Claims, error) {
	claims, ok := s[token]
	if !ok {
		return Claims{}, ErrVerifyFailed
	}
	return claims, nil
}
