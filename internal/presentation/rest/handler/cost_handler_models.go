package handler

// CostModel 機能別コスト
// @Description 機能1回あたりの消費Spark数
type CostModel struct {
	Action string `json:"action" example:"lesson.generate"`
	Sparks string `json:"sparks" example:"10"`
}

// CostsResponse コスト表レスポンス
// @Description コスト表レスポンス
type CostsResponse struct {
	Costs []CostModel `json:"costs"`
}
