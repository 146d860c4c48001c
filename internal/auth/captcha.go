package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// CaptchaVerifier validates a client CAPTCHA assertion with an external provider.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

const recaptchaVerifyURL = "https://www.google.com/recaptcha/api/siteverify"

// RecaptchaVerifier checks tokens against the Google reCAPTCHA siteverify endpoint.
type RecaptchaVerifier struct {
	secret string
	client *http.Client
}

// NewRecaptchaVerifier creates a new reCAPTCHA verifier
func NewRecaptchaVerifier(secret string) *RecaptchaVerifier {
	return &RecaptchaVerifier{
		secret: secret,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type recaptchaResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

// Verify posts the token to the provider and surfaces its error codes on rejection.
func (v *RecaptchaVerifier) Verify(ctx context.Context, token, remoteIP string) error {
	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, recaptchaVerifyURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build CAPTCHA request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("CAPTCHA provider unreachable: %w", err)
	}
	defer resp.Body.Close()

	var result recaptchaResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode CAPTCHA response: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("%w: %s", ErrCaptchaFailed, strings.Join(result.ErrorCodes, ", "))
	}
	return nil
}

// NoopCaptchaVerifier accepts every token. Used in dev mode and in tests.
type NoopCaptchaVerifier struct{}

func (NoopCaptchaVerifier) Verify(ctx context.Context, token, remoteIP string) error {
	return nil
}
