package tests

import (
	"encoding/json"
	"net/http"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigIntegration(t *testing.T) {
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}

	ts := newTestServer(t)
	baseURL := ts.BaseURL()

	t.Run("A_AdminUpdatesTunables", func(t *testing.T) {
		ts.Truncate(t)
		client, csrf := adminClient(t, ts)

		resp := doJSON(t, client, http.MethodPut, baseURL+"/config/maxLoginAttempts", csrf, map[string]int{"maxAttempts": 5})
		body := readBody(resp)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode, "update maxLoginAttempts must return 200; body: %s", body)

		resp = doJSON(t, client, http.MethodPut, baseURL+"/config/otpExpiration", csrf, map[string]int{"otpLifetime": 10})
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp = doJSON(t, client, http.MethodPut, baseURL+"/config/activationMessage", csrf, map[string]string{"message": "Activa tu cuenta"})
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		// Aggregated read reflects the writes.
		getResp, err := client.Get(baseURL + "/config/getConfig")
		require.NoError(t, err)
		getBody := readBody(getResp)
		getResp.Body.Close()
		require.Equal(t, http.StatusOK, getResp.StatusCode, "GET /config/getConfig must return 200; body: %s", getBody)
		var cfg struct {
			MaxLoginAttempts  int    `json:"maxLoginAttempts"`
			OtpLifetime       int    `json:"otpLifetime"`
			ActivationMessage string `json:"activationMessage"`
		}
		require.NoError(t, json.Unmarshal([]byte(getBody), &cfg))
		assert.Equal(t, 5, cfg.MaxLoginAttempts)
		assert.Equal(t, 10, cfg.OtpLifetime)
		assert.Equal(t, "Activa tu cuenta", cfg.ActivationMessage)

		// The public OTP lifetime read follows suit.
		otpResp, err := http.Get(baseURL + "/auth/otp-exp-time")
		require.NoError(t, err)
		otpBody := readBody(otpResp)
		otpResp.Body.Close()
		require.Equal(t, http.StatusOK, otpResp.StatusCode, "otp-exp-time must return 200; body: %s", otpBody)
	})

	t.Run("B_ConfigRequiresSession", func(t *testing.T) {
		client := newClient(t)
		csrf := fetchCSRFToken(t, client, baseURL)
		resp := doJSON(t, client, http.MethodPut, baseURL+"/config/maxLoginAttempts", csrf, map[string]int{"maxAttempts": 5})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("C_TunablesAreAdminOnly", func(t *testing.T) {
		ts.Truncate(t)
		client := newClient(t)
		csrf := fetchCSRFToken(t, client, baseURL)
		registerAndActivate(t, ts, client, csrf, testEmail)
		loginWithOTP(t, ts, client, csrf, testEmail, testPassword)

		resp := doJSON(t, client, http.MethodPut, baseURL+"/config/activationMessage", csrf, map[string]string{"message": "hola"})
		resp.Body.Close()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, "role user must not edit the activation message")

		// maxLoginAttempts only needs a session, not the admin role.
		resp = doJSON(t, client, http.MethodPut, baseURL+"/config/maxLoginAttempts", csrf, map[string]int{"maxAttempts": 4})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("D_RecentLockedUsers", func(t *testing.T) {
		ts.Truncate(t)
		client, _ := adminClient(t, ts)

		// Lock a second account by exhausting its attempts.
		other := newClient(t)
		otherCSRF := fetchCSRFToken(t, other, baseURL)
		registerAndActivate(t, ts, other, otherCSRF, "pedro@example.com")
		for i := 0; i < 3; i++ {
			resp := postJSON(t, other, baseURL+"/auth/login", otherCSRF, map[string]string{
				"correo": "pedro@example.com",
				"pass":   "Incorrecta1!",
			})
			resp.Body.Close()
		}

		resp, err := client.Get(baseURL + "/config/getRecentUsers?timeframe=day")
		require.NoError(t, err)
		body := readBody(resp)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode, "getRecentUsers must return 200; body: %s", body)
		var locked []struct {
			Email string `json:"correo"`
		}
		require.NoError(t, json.Unmarshal([]byte(body), &locked))
		require.Len(t, locked, 1)
		assert.Equal(t, "pedro@example.com", locked[0].Email)

		badResp, err := client.Get(baseURL + "/config/getRecentUsers?timeframe=decade")
		require.NoError(t, err)
		badResp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, badResp.StatusCode)
	})
}

func TestFrontIntegration(t *testing.T) {
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}

	ts := newTestServer(t)
	baseURL := ts.BaseURL()
	client := newClient(t)
	csrf := fetchCSRFToken(t, client, baseURL)

	t.Run("A_SettingsRoundTrip", func(t *testing.T) {
		ts.Truncate(t)

		resp := doJSON(t, client, http.MethodPut, baseURL+"/front/updateData", csrf, map[string]string{
			"type":  "welcomeBanner",
			"value": "Bienvenido a CuidaMed",
		})
		body := readBody(resp)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode, "updateData must return 200; body: %s", body)

		getResp, err := client.Get(baseURL + "/front/welcomeBanner")
		require.NoError(t, err)
		getBody := readBody(getResp)
		getResp.Body.Close()
		require.Equal(t, http.StatusOK, getResp.StatusCode, "get setting must return 200; body: %s", getBody)
		var setting struct {
			Type  string `json:"type"`
			Value string `json:"value"`
		}
		require.NoError(t, json.Unmarshal([]byte(getBody), &setting))
		assert.Equal(t, "Bienvenido a CuidaMed", setting.Value)

		delResp := doJSON(t, client, http.MethodDelete, baseURL+"/front/welcomeBanner", csrf, nil)
		delResp.Body.Close()
		require.Equal(t, http.StatusOK, delResp.StatusCode)

		goneResp, err := client.Get(baseURL + "/front/welcomeBanner")
		require.NoError(t, err)
		goneResp.Body.Close()
		assert.Equal(t, http.StatusNotFound, goneResp.StatusCode)
	})

	t.Run("B_LogoUpdateAndActivate", func(t *testing.T) {
		ts.Truncate(t)

		resp := doJSON(t, client, http.MethodPut, baseURL+"/front/updateLogo", csrf, map[string]string{
			"currentLogo": "",
			"newLogo":     "https://cdn.example.com/logo-v1.png",
		})
		body := readBody(resp)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode, "updateLogo must return 200; body: %s", body)

		resp = doJSON(t, client, http.MethodPut, baseURL+"/front/updateLogo", csrf, map[string]string{
			"currentLogo": "https://cdn.example.com/logo-v1.png",
			"newLogo":     "https://cdn.example.com/logo-v2.png",
		})
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		// Reactivating a history entry does not duplicate it.
		actResp := doJSON(t, client, http.MethodPut, baseURL+"/front/logo/activate", csrf, map[string]string{
			"logoToActivate": "https://cdn.example.com/logo-v1.png",
		})
		actBody := readBody(actResp)
		actResp.Body.Close()
		require.Equal(t, http.StatusOK, actResp.StatusCode, "activate logo must return 200; body: %s", actBody)

		histResp, err := client.Get(baseURL + "/front/logoHistory")
		require.NoError(t, err)
		histBody := readBody(histResp)
		histResp.Body.Close()
		require.Equal(t, http.StatusOK, histResp.StatusCode)
		var logo struct {
			CurrentLogo string   `json:"currentLogo"`
			LogoHistory []string `json:"logoHistory"`
		}
		require.NoError(t, json.Unmarshal([]byte(histBody), &logo))
		assert.Equal(t, "https://cdn.example.com/logo-v1.png", logo.CurrentLogo)
		assert.Len(t, logo.LogoHistory, 2)
	})
}
