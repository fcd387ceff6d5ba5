package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"spark-ledger/internal/infrastructure/config"
	otelinfra "spark-ledger/internal/infrastructure/observability/otel"
)

func testJWTConfig() *config.JWTConfig {
	return &config.JWTConfig{
		Secret:     "test-secret-key",
		Issuer:     "test-issuer",
		Expiration: time.Hour,
	}
}

func signTestToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestAuthMiddleware(t *testing.T) {
	cfg := testJWTConfig()

	tests := []struct {
		name           string
		authHeader     string
		wantStatusCode int
		wantAccountID  string
	}{
		{
			name: "正常系: 有効なトークン",
			authHeader: "Bearer " + signTestToken(t, cfg.Secret, jwt.MapClaims{
				"account_id": "acct123",
				"iss":        cfg.Issuer,
				"exp":        time.Now().Add(time.Hour).Unix(),
			}),
			wantStatusCode: http.StatusOK,
			wantAccountID:  "acct123",
		},
		{
			name:           "異常系: Authorizationヘッダーがない",
			authHeader:     "",
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "異常系: Bearer形式でない",
			authHeader:     "Basic dXNlcjpwYXNz",
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name: "異常系: 署名シークレットが異なる",
			authHeader: "Bearer " + signTestToken(t, "wrong-secret", jwt.MapClaims{
				"account_id": "acct123",
				"exp":        time.Now().Add(time.Hour).Unix(),
			}),
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name: "異常系: 期限切れのトークン",
			authHeader: "Bearer " + signTestToken(t, cfg.Secret, jwt.MapClaims{
				"account_id": "acct123",
				"exp":        time.Now().Add(-time.Hour).Unix(),
			}),
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name: "異常系: account_idクレームがない",
			authHeader: "Bearer " + signTestToken(t, cfg.Secret, jwt.MapClaims{
				"exp": time.Now().Add(time.Hour).Unix(),
			}),
			wantStatusCode: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts/acct123/balance", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			logger := otelinfra.NewLogger(otel.Tracer("test"))
			mw := AuthMiddleware(cfg, logger)

			var gotAccountID string
			handler := mw(func(c echo.Context) error {
				gotAccountID, _ = c.Get("account_id").(string)
				return c.String(http.StatusOK, "ok")
			})

			err := handler(c)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatusCode, rec.Code)

			if tt.wantStatusCode == http.StatusOK {
				assert.Equal(t, tt.wantAccountID, gotAccountID)
			} else {
				var resp ErrorResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				assert.Equal(t, "unauthorized", resp.Error)
			}
		})
	}
}
