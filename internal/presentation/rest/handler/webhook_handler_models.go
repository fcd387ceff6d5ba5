package handler

// PaymentWebhookRequest 決済イベントリクエスト
// @Description 決済プロセッサから配信されるイベント
type PaymentWebhookRequest struct {
	EventID    string `json:"event_id" example:"evt_1a2b3c"`
	EventType  string `json:"event_type" example:"payment.completed" enums:"payment.completed,subscription.activated,subscription.updated,subscription.canceled"`
	AccountID  string `json:"account_id" example:"acct123"`
	Sparks     string `json:"sparks,omitempty" example:"500"`
	PriceCents string `json:"price_cents,omitempty" example:"999"`
	Action     string `json:"action,omitempty" example:"lesson.generate"`
	Tier       string `json:"tier,omitempty" example:"plus" enums:"starter,plus,max"`
	ExpiresAt  string `json:"expires_at,omitempty" example:"2027-08-31T00:00:00Z"`
}

// PaymentWebhookResponse 決済イベントレスポンス
// @Description 決済イベントの受領確認
type PaymentWebhookResponse struct {
	EventID   string `json:"event_id" example:"evt_1a2b3c"`
	Status    string `json:"status" example:"processed"`
	Duplicate bool   `json:"duplicate" example:"false"`
}
