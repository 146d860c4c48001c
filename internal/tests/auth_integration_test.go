package tests

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/lib/pq"

	"github.com/cuidamed/backend/internal/audit"
	"github.com/cuidamed/backend/internal/auth"
	"github.com/cuidamed/backend/internal/config"
	"github.com/cuidamed/backend/internal/db"
	"github.com/cuidamed/backend/internal/docs"
	"github.com/cuidamed/backend/internal/email"
	httpserver "github.com/cuidamed/backend/internal/http"
	"github.com/cuidamed/backend/internal/http/handlers"
	"github.com/cuidamed/backend/internal/repo"
	"github.com/cuidamed/backend/internal/settings"
)

const (
	testEmail    = "maria@example.com"
	testPassword = "MuySegura123$"
)

func TestMain(m *testing.M) {
	// Set env if unset. Do NOT set DATABASE_URL; integration tests skip if missing.
	if os.Getenv("JWT_SECRET") == "" {
		os.Setenv("JWT_SECRET", "test-jwt-secret-at-least-32-characters-long")
	}
	os.Exit(m.Run())
}

// testServer holds the server and DB for integration tests
type testServer struct {
	Server *httptest.Server
	DB     *sql.DB
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg, err := config.Load()
	require.NoError(t, err, "config load must succeed for integration test")

	ctx := context.Background()
	database, err := db.Open(ctx, cfg.DatabaseURL)
	require.NoError(t, err, "database open must succeed; check DATABASE_URL and that test DB exists")
	t.Cleanup(func() { database.Close() })

	err = RunMigrations(database)
	require.NoError(t, err, "migrations must run successfully")

	userRepo := repo.NewUserRepo(database)
	docRepo := repo.NewDocumentRepo(database)
	archiveRepo := repo.NewArchiveRepo(database)
	configRepo := repo.NewConfigRepo(database)
	auditRepo := repo.NewAuditRepo(database)
	frontRepo := repo.NewFrontRepo(database)

	settingsStore := settings.NewStore(configRepo)
	jwtService := auth.NewJWTService(cfg.JWTSecret)
	lockout := auth.NewLockoutPolicy(userRepo, settingsStore)
	authService := auth.NewService(userRepo, jwtService, lockout, auth.NoopCaptchaVerifier{}, email.LogSender{}, settingsStore, cfg.ClientURL)
	engine := docs.NewEngine(docRepo, archiveRepo, audit.NewRecorder(auditRepo))

	router := httpserver.NewRouter(httpserver.RouterDeps{
		DB:              database,
		JWTService:      jwtService,
		AuthHandler:     handlers.NewAuthHandler(authService, settingsStore, false),
		DocumentHandler: handlers.NewDocumentHandler(engine),
		ConfigHandler:   handlers.NewConfigHandler(settingsStore, userRepo),
		FrontHandler:    handlers.NewFrontHandler(frontRepo),
		SecureCookies:   false,
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testServer{Server: server, DB: database}
}

func (s *testServer) BaseURL() string { return s.Server.URL }

func (s *testServer) Truncate(t *testing.T) {
	t.Helper()
	require.NoError(t, TruncateCoreTables(context.Background(), s.DB), "truncate core tables")
}

// newClient returns an HTTP client with a cookie jar so session and CSRF
// cookies survive across requests.
func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

// fetchCSRFToken primes the client's jar with the anti-forgery cookie and
// returns the token for the request header.
func fetchCSRFToken(t *testing.T, client *http.Client, baseURL string) string {
	t.Helper()
	resp, err := client.Get(baseURL + "/get-csrf-token")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body["csrfToken"])
	return body["csrfToken"]
}

func postJSON(t *testing.T, client *http.Client, targetURL, csrfToken string, payload any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, targetURL, bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if csrfToken != "" {
		req.Header.Set("X-CSRF-Token", csrfToken)
	}
	resp, err := client.Do(req)
	require.NoError(t, err)
	return resp
}

func readBody(resp *http.Response) string {
	if resp == nil || resp.Body == nil {
		return ""
	}
	b, _ := io.ReadAll(resp.Body)
	return string(b)
}

// verificationToken reads the stored verification token straight from the DB;
// in production it only travels inside the activation email.
func (s *testServer) verificationToken(t *testing.T, email string) string {
	t.Helper()
	var token sql.NullString
	err := s.DB.QueryRow("SELECT verification_token FROM users WHERE email = $1", email).Scan(&token)
	require.NoError(t, err)
	require.True(t, token.Valid, "verification token must be stored")
	return token.String
}

// storedOTP reads the pending OTP straight from the DB.
func (s *testServer) storedOTP(t *testing.T, email string) int {
	t.Helper()
	var otp sql.NullInt64
	err := s.DB.QueryRow("SELECT otp FROM users WHERE email = $1", email).Scan(&otp)
	require.NoError(t, err)
	require.True(t, otp.Valid, "OTP must be stored after phase 1")
	return int(otp.Int64)
}

// registerAndActivate walks a fresh account through register + verify.
func registerAndActivate(t *testing.T, ts *testServer, client *http.Client, csrf, email string) {
	t.Helper()
	resp := postJSON(t, client, ts.BaseURL()+"/auth/register", csrf, map[string]string{
		"correo":         email,
		"contraseña":     testPassword,
		"nombreCompleto": "María Pérez",
		"captchaToken":   "test-token",
	})
	body := readBody(resp)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode, "register must return 201; body: %s", body)

	token := ts.verificationToken(t, email)
	verifyResp, err := client.Get(ts.BaseURL() + "/auth/verify/" + url.PathEscape(token))
	require.NoError(t, err)
	verifyBody := readBody(verifyResp)
	verifyResp.Body.Close()
	require.Equal(t, http.StatusOK, verifyResp.StatusCode, "verify must return 200; body: %s", verifyBody)
}

// loginWithOTP walks phase 1 + phase 2 and leaves the session cookie in the
// client's jar.
func loginWithOTP(t *testing.T, ts *testServer, client *http.Client, csrf, email, password string) {
	t.Helper()
	resp := postJSON(t, client, ts.BaseURL()+"/auth/login", csrf, map[string]string{
		"correo": email,
		"pass":   password,
	})
	body := readBody(resp)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode, "login must return 200; body: %s", body)

	var loginRes struct {
		UserID string `json:"userId"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &loginRes))
	require.NotEmpty(t, loginRes.UserID)

	otp := ts.storedOTP(t, email)
	otpResp := postJSON(t, client, ts.BaseURL()+"/auth/verify-otp", csrf, map[string]string{
		"userId": loginRes.UserID,
		"otp":    fmt.Sprintf("%d", otp),
	})
	otpBody := readBody(otpResp)
	otpResp.Body.Close()
	require.Equal(t, http.StatusOK, otpResp.StatusCode, "verify-otp must return 200; body: %s", otpBody)
}

func TestAuthIntegration(t *testing.T) {
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}

	ts := newTestServer(t)
	baseURL := ts.BaseURL()

	t.Run("A_HealthCheck", func(t *testing.T) {
		resp, err := http.Get(baseURL + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, "GET /health must return 200")
		var body map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "ok", body["status"])
	})

	t.Run("B_CSRFRequiredOnMutations", func(t *testing.T) {
		ts.Truncate(t)
		client := newClient(t)
		resp := postJSON(t, client, baseURL+"/auth/login", "", map[string]string{"correo": testEmail, "pass": testPassword})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, "POST without CSRF token must return 403")
	})

	t.Run("C_RegisterVerifyLoginFlow", func(t *testing.T) {
		ts.Truncate(t)
		client := newClient(t)
		csrf := fetchCSRFToken(t, client, baseURL)

		registerAndActivate(t, ts, client, csrf, testEmail)
		loginWithOTP(t, ts, client, csrf, testEmail, testPassword)

		// The session cookie now grants access to protected routes.
		resp, err := client.Get(baseURL + "/auth/user-data")
		require.NoError(t, err)
		defer resp.Body.Close()
		body := readBody(resp)
		assert.Equal(t, http.StatusOK, resp.StatusCode, "GET /auth/user-data must return 200; body: %s", body)
		var userData struct {
			UserID string `json:"userId"`
			Role   string `json:"role"`
		}
		require.NoError(t, json.Unmarshal([]byte(body), &userData))
		assert.NotEmpty(t, userData.UserID)
		assert.Equal(t, "user", userData.Role)
	})

	t.Run("C2_DuplicateRegistrationRejected", func(t *testing.T) {
		client := newClient(t)
		csrf := fetchCSRFToken(t, client, baseURL)
		resp := postJSON(t, client, baseURL+"/auth/register", csrf, map[string]string{
			"correo":         testEmail,
			"contraseña":     testPassword,
			"nombreCompleto": "Otra María",
			"captchaToken":   "test-token",
		})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "duplicate email must return 400; body: %s", readBody(resp))
	})

	t.Run("D_LoginBeforeVerificationRejected", func(t *testing.T) {
		ts.Truncate(t)
		client := newClient(t)
		csrf := fetchCSRFToken(t, client, baseURL)

		resp := postJSON(t, client, baseURL+"/auth/register", csrf, map[string]string{
			"correo":         testEmail,
			"contraseña":     testPassword,
			"nombreCompleto": "María Pérez",
			"captchaToken":   "test-token",
		})
		resp.Body.Close()
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		loginResp := postJSON(t, client, baseURL+"/auth/login", csrf, map[string]string{
			"correo": testEmail,
			"pass":   testPassword,
		})
		defer loginResp.Body.Close()
		assert.Equal(t, http.StatusForbidden, loginResp.StatusCode, "inactive account must return 403; body: %s", readBody(loginResp))
	})

	t.Run("E_WrongOTPRejected", func(t *testing.T) {
		ts.Truncate(t)
		client := newClient(t)
		csrf := fetchCSRFToken(t, client, baseURL)
		registerAndActivate(t, ts, client, csrf, testEmail)

		resp := postJSON(t, client, baseURL+"/auth/login", csrf, map[string]string{
			"correo": testEmail,
			"pass":   testPassword,
		})
		body := readBody(resp)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var loginRes struct {
			UserID string `json:"userId"`
		}
		require.NoError(t, json.Unmarshal([]byte(body), &loginRes))

		otpResp := postJSON(t, client, baseURL+"/auth/verify-otp", csrf, map[string]string{
			"userId": loginRes.UserID,
			"otp":    "000000",
		})
		defer otpResp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, otpResp.StatusCode, "wrong OTP must return 400; body: %s", readBody(otpResp))
	})

	t.Run("F_LockoutAfterRepeatedFailures", func(t *testing.T) {
		ts.Truncate(t)
		client := newClient(t)
		csrf := fetchCSRFToken(t, client, baseURL)
		registerAndActivate(t, ts, client, csrf, testEmail)

		// Default threshold is three attempts.
		for i := 0; i < 2; i++ {
			resp := postJSON(t, client, baseURL+"/auth/login", csrf, map[string]string{
				"correo": testEmail,
				"pass":   "Incorrecta1!",
			})
			resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "failure %d must return 400", i+1)
		}

		lockResp := postJSON(t, client, baseURL+"/auth/login", csrf, map[string]string{
			"correo": testEmail,
			"pass":   "Incorrecta1!",
		})
		lockResp.Body.Close()
		assert.Equal(t, http.StatusForbidden, lockResp.StatusCode, "3rd failure must lock the account (403)")

		// Correct password is rejected while the lock holds.
		okResp := postJSON(t, client, baseURL+"/auth/login", csrf, map[string]string{
			"correo": testEmail,
			"pass":   testPassword,
		})
		defer okResp.Body.Close()
		assert.Equal(t, http.StatusForbidden, okResp.StatusCode, "locked account must reject the correct password; body: %s", readBody(okResp))
	})

	t.Run("G_ProtectedRouteWithoutSession", func(t *testing.T) {
		resp, err := http.Get(baseURL + "/auth/user-data")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("H_PasswordResetFlow", func(t *testing.T) {
		ts.Truncate(t)
		client := newClient(t)
		csrf := fetchCSRFToken(t, client, baseURL)
		registerAndActivate(t, ts, client, csrf, testEmail)

		resp := postJSON(t, client, baseURL+"/auth/requestPasswordReset", csrf, map[string]string{"correo": testEmail})
		body := readBody(resp)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode, "requestPasswordReset must return 200; body: %s", body)

		var code sql.NullString
		require.NoError(t, ts.DB.QueryRow("SELECT reset_code FROM users WHERE email = $1", testEmail).Scan(&code))
		require.True(t, code.Valid)

		verifyResp := postJSON(t, client, baseURL+"/auth/verifyCodeReset", csrf, map[string]string{
			"correo": testEmail,
			"codigo": code.String,
		})
		verifyResp.Body.Close()
		assert.Equal(t, http.StatusOK, verifyResp.StatusCode)

		resetResp := postJSON(t, client, baseURL+"/auth/resetPassword", csrf, map[string]string{
			"resetToken":      code.String,
			"nuevaContraseña": "NuevaClave456#",
		})
		resetResp.Body.Close()
		assert.Equal(t, http.StatusOK, resetResp.StatusCode)

		// The new password works end to end.
		loginWithOTP(t, ts, client, csrf, testEmail, "NuevaClave456#")
	})
}
