package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	webhookapp "spark-ledger/internal/application/webhook"
	"spark-ledger/internal/infrastructure/config"
	otelinfra "spark-ledger/internal/infrastructure/observability/otel"

	"github.com/labstack/echo/v4"
)

// signatureHeader 決済プロセッサが署名を載せるヘッダー
const signatureHeader = "Payment-Signature"

// WebhookHandler 決済Webhookハンドラー
// 署名検証はここで行い、検証済みのイベントだけをアプリケーション層へ渡す
type WebhookHandler struct {
	webhookService *webhookapp.WebhookApplicationService
	cfg            *config.WebhookConfig
	logger         *otelinfra.Logger
}

// NewWebhookHandler 新しいWebhookHandlerを作成
func NewWebhookHandler(
	webhookService *webhookapp.WebhookApplicationService,
	cfg *config.WebhookConfig,
	logger *otelinfra.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		webhookService: webhookService,
		cfg:            cfg,
		logger:         logger,
	}
}

// HandlePaymentWebhook 決済Webhookハンドラー
// @Summary 決済イベントを受信
// @Description 決済プロセッサからの署名付きイベントを検証し、台帳へ反映します。同一イベントIDの再配信は副作用なしで受領確認されます
// @Tags webhook
// @Accept json
// @Produce json
// @Param Payment-Signature header string true "HMAC-SHA256署名 (t=<unix>,v1=<hex>)"
// @Param request body PaymentWebhookRequest true "決済イベント"
// @Success 200 {object} PaymentWebhookResponse "受領確認"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Failure 401 {object} ErrorResponse "署名検証エラー"
// @Router /webhooks/payment [post]
func (h *WebhookHandler) HandlePaymentWebhook(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read request body")
	}

	if err := verifySignature(h.cfg.SigningSecret, h.cfg.Tolerance, c.Request().Header.Get(signatureHeader), body, time.Now()); err != nil {
		h.logger.Warn(ctx, "Webhook signature verification failed", map[string]interface{}{
			"error": err.Error(),
		})
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid webhook signature")
	}

	var reqBody PaymentWebhookRequest
	if err := json.Unmarshal(body, &reqBody); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	var sparks, priceCents int64
	if reqBody.Sparks != "" {
		sparks, err = strconv.ParseInt(reqBody.Sparks, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid sparks format")
		}
	}
	if reqBody.PriceCents != "" {
		priceCents, err = strconv.ParseInt(reqBody.PriceCents, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid price_cents format")
		}
	}

	var expiresAt *time.Time
	if reqBody.ExpiresAt != "" {
		parsed, err := time.Parse(time.RFC3339, reqBody.ExpiresAt)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid expires_at format")
		}
		expiresAt = &parsed
	}

	resp, err := h.webhookService.HandleEvent(ctx, &webhookapp.HandleEventRequest{
		EventID:    reqBody.EventID,
		EventType:  reqBody.EventType,
		AccountID:  reqBody.AccountID,
		Sparks:     sparks,
		PriceCents: priceCents,
		Action:     reqBody.Action,
		Tier:       reqBody.Tier,
		ExpiresAt:  expiresAt,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, PaymentWebhookResponse{
		EventID:   resp.EventID,
		Status:    resp.Status,
		Duplicate: resp.Duplicate,
	})
}

// verifySignature 署名ヘッダー（t=<unix>,v1=<hex>）を検証
// タイムスタンプの許容ずれを確認した上で、HMAC-SHA256("<t>.<body>")を定数時間比較する
func verifySignature(secret string, tolerance time.Duration, header string, body []byte, now time.Time) error {
	if header == "" {
		return fmt.Errorf("missing signature header")
	}

	var timestamp int64
	var signature string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			parsed, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid signature timestamp")
			}
			timestamp = parsed
		case "v1":
			signature = kv[1]
		}
	}

	if timestamp == 0 || signature == "" {
		return fmt.Errorf("malformed signature header")
	}

	// リプレイ対策: タイムスタンプの許容ずれを確認
	diff := now.Sub(time.Unix(timestamp, 0))
	if diff < 0 {
		diff = -diff
	}
	if diff > tolerance {
		return fmt.Errorf("signature timestamp outside tolerance")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", timestamp, body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}
