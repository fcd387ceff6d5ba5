package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	deductionapp "spark-ledger/internal/application/deduction"
	"spark-ledger/internal/domain/allocation"
	"spark-ledger/internal/domain/balance"
	"spark-ledger/internal/domain/ledger"
	"spark-ledger/internal/domain/service"
	otelinfra "spark-ledger/internal/infrastructure/observability/otel"
	restmiddleware "spark-ledger/internal/presentation/rest/middleware"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

func newTestBalanceHandler(
	mbr *MockBalanceRepository,
	mar *MockAllocationRepository,
	mer *MockEntryRepository,
	mtm *MockTransactionManager,
) *BalanceHandler {
	tracer := noop.NewTracerProvider().Tracer("test")
	logger := otelinfra.NewLogger(tracer)
	metrics, _ := otelinfra.NewMetrics("test")
	balanceService := service.NewBalanceService(mbr)

	appService := deductionapp.NewDeductionApplicationService(
		mbr,
		mar,
		mer,
		mtm,
		balanceService,
		logger,
		metrics,
	)
	return NewBalanceHandler(appService)
}

// invokeHandler エラーハンドリングミドルウェアを通してハンドラーを実行
func invokeHandler(e *echo.Echo, c echo.Context, fn echo.HandlerFunc) {
	tracer := noop.NewTracerProvider().Tracer("test")
	logger := otelinfra.NewLogger(tracer)
	middlewareFunc := restmiddleware.ErrorHandlerMiddleware(logger)
	handlerFunc := middlewareFunc(fn)
	if err := handlerFunc(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
}

func TestBalanceHandler_GetBalance(t *testing.T) {
	tests := []struct {
		name           string
		accountID      string
		setupMock      func(*MockBalanceRepository)
		expectedStatus int
		checkBody      func(*testing.T, map[string]interface{})
	}{
		{
			name:      "正常系: 残高取得成功",
			accountID: "acct123",
			setupMock: func(mbr *MockBalanceRepository) {
				b := balance.MustNewBalance("acct123", 50, 300, 120, 1)
				mbr.On("FindByAccountID", mock.Anything, "acct123").Return(b, nil)
			},
			expectedStatus: http.StatusOK,
			checkBody: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "acct123", body["account_id"])
				assert.Equal(t, "470", body["total_sparks"])
				pools := body["pools"].(map[string]interface{})
				assert.Equal(t, "50", pools["trial"])
				assert.Equal(t, "300", pools["subscription"])
				assert.Equal(t, "120", pools["topup"])
			},
		},
		{
			name:      "正常系: 残高行が無いアカウントは全プール0",
			accountID: "acct_new",
			setupMock: func(mbr *MockBalanceRepository) {
				mbr.On("FindByAccountID", mock.Anything, "acct_new").Return(nil, balance.ErrBalanceNotFound)
			},
			expectedStatus: http.StatusOK,
			checkBody: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "acct_new", body["account_id"])
				assert.Equal(t, "0", body["total_sparks"])
			},
		},
		{
			name:      "異常系: データベースエラー",
			accountID: "acct123",
			setupMock: func(mbr *MockBalanceRepository) {
				mbr.On("FindByAccountID", mock.Anything, "acct123").Return(nil, assert.AnError)
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			mbr := new(MockBalanceRepository)
			mar := new(MockAllocationRepository)
			mer := new(MockEntryRepository)
			mtm := new(MockTransactionManager)

			tt.setupMock(mbr)

			handler := newTestBalanceHandler(mbr, mar, mer, mtm)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts/"+tt.accountID+"/balance", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)
			c.SetParamNames("account_id")
			c.SetParamValues(tt.accountID)

			invokeHandler(e, c, handler.GetBalance)
			assert.Equal(t, tt.expectedStatus, rec.Code)

			if tt.checkBody != nil {
				var body map[string]interface{}
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				tt.checkBody(t, body)
			}

			mbr.AssertExpectations(t)
		})
	}
}

func TestBalanceHandler_GetAffordability(t *testing.T) {
	tests := []struct {
		name           string
		costParam      string
		setupMock      func(*MockBalanceRepository)
		expectedStatus int
		checkBody      func(*testing.T, map[string]interface{})
	}{
		{
			name:      "正常系: 支払い可能",
			costParam: "5",
			setupMock: func(mbr *MockBalanceRepository) {
				b := balance.MustNewBalance("acct123", 50, 300, 120, 1)
				mbr.On("FindByAccountID", mock.Anything, "acct123").Return(b, nil)
			},
			expectedStatus: http.StatusOK,
			checkBody: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, true, body["affordable"])
				assert.Equal(t, "5", body["cost"])
				assert.Equal(t, "470", body["total_sparks"])
			},
		},
		{
			name:      "正常系: 残高不足で支払い不可",
			costParam: "1000",
			setupMock: func(mbr *MockBalanceRepository) {
				b := balance.MustNewBalance("acct123", 10, 0, 0, 1)
				mbr.On("FindByAccountID", mock.Anything, "acct123").Return(b, nil)
			},
			expectedStatus: http.StatusOK,
			checkBody: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, false, body["affordable"])
			},
		},
		{
			name:           "異常系: コストが数値でない",
			costParam:      "abc",
			setupMock:      func(mbr *MockBalanceRepository) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "異常系: コストが0以下",
			costParam:      "0",
			setupMock:      func(mbr *MockBalanceRepository) {},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			mbr := new(MockBalanceRepository)
			mar := new(MockAllocationRepository)
			mer := new(MockEntryRepository)
			mtm := new(MockTransactionManager)

			tt.setupMock(mbr)

			handler := newTestBalanceHandler(mbr, mar, mer, mtm)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts/acct123/affordability?cost="+tt.costParam, nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)
			c.SetParamNames("account_id")
			c.SetParamValues("acct123")

			invokeHandler(e, c, handler.GetAffordability)
			assert.Equal(t, tt.expectedStatus, rec.Code)

			if tt.checkBody != nil {
				var body map[string]interface{}
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				tt.checkBody(t, body)
			}

			mbr.AssertExpectations(t)
		})
	}
}

func TestBalanceHandler_Deduct(t *testing.T) {
	tests := []struct {
		name           string
		reqBody        map[string]interface{}
		setupMocks     func(*MockBalanceRepository, *MockAllocationRepository, *MockEntryRepository, *MockTransactionManager)
		expectedStatus int
		checkBody      func(*testing.T, map[string]interface{})
	}{
		{
			name: "正常系: トライアルプールから消費",
			reqBody: map[string]interface{}{
				"cost":   "5",
				"action": "flashcards.generate",
			},
			setupMocks: func(mbr *MockBalanceRepository, mar *MockAllocationRepository, mer *MockEntryRepository, mtm *MockTransactionManager) {
				expiry := time.Now().Add(7 * 24 * time.Hour)
				b := balance.MustNewBalance("acct123", 50, 0, 0, 1)
				trialAlloc := allocation.MustNewAllocation("alloc_trial", "acct123", allocation.KindTrial, 50, 50, 0, &expiry)

				mtm.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
				mbr.On("FindByAccountID", mock.Anything, "acct123").Return(b, nil)
				mar.On("FindConsumable", mock.Anything, "acct123", allocation.KindTrial, mock.Anything).
					Return([]*allocation.Allocation{trialAlloc}, nil)
				mar.On("FindConsumable", mock.Anything, "acct123", allocation.KindTopup, mock.Anything).
					Return([]*allocation.Allocation{}, nil)
				mar.On("Save", mock.Anything, mock.Anything).Return(nil)
				mbr.On("Save", mock.Anything, mock.Anything).Return(nil)
				mer.On("Save", mock.Anything, mock.MatchedBy(func(e *ledger.Entry) bool {
					return e.Amount() == -5 && e.Pool() == balance.PoolTrial
				})).Return(nil)
			},
			expectedStatus: http.StatusOK,
			checkBody: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "45", body["balance_after"])
				assert.Equal(t, "trial", body["pool"])
				assert.Equal(t, "completed", body["status"])
			},
		},
		{
			name: "異常系: 残高不足は402",
			reqBody: map[string]interface{}{
				"cost":   "10",
				"action": "lesson.generate",
			},
			setupMocks: func(mbr *MockBalanceRepository, mar *MockAllocationRepository, mer *MockEntryRepository, mtm *MockTransactionManager) {
				mtm.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
				mbr.On("FindByAccountID", mock.Anything, "acct123").Return(nil, balance.ErrBalanceNotFound)
			},
			expectedStatus: http.StatusPaymentRequired,
		},
		{
			name: "異常系: コストが数値でない",
			reqBody: map[string]interface{}{
				"cost":   "abc",
				"action": "tutor.reply",
			},
			setupMocks:     func(mbr *MockBalanceRepository, mar *MockAllocationRepository, mer *MockEntryRepository, mtm *MockTransactionManager) {},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			mbr := new(MockBalanceRepository)
			mar := new(MockAllocationRepository)
			mer := new(MockEntryRepository)
			mtm := new(MockTransactionManager)

			tt.setupMocks(mbr, mar, mer, mtm)

			handler := newTestBalanceHandler(mbr, mar, mer, mtm)

			bodyBytes, err := json.Marshal(tt.reqBody)
			require.NoError(t, err)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/accounts/acct123/deduct", bytes.NewReader(bodyBytes))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)
			c.SetParamNames("account_id")
			c.SetParamValues("acct123")

			invokeHandler(e, c, handler.Deduct)
			assert.Equal(t, tt.expectedStatus, rec.Code)

			if tt.checkBody != nil {
				var body map[string]interface{}
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				tt.checkBody(t, body)
			}

			mbr.AssertExpectations(t)
			mar.AssertExpectations(t)
			mer.AssertExpectations(t)
		})
	}
}

func TestBalanceHandler_Refund(t *testing.T) {
	tests := []struct {
		name           string
		reqBody        map[string]interface{}
		setupMocks     func(*MockBalanceRepository, *MockAllocationRepository, *MockEntryRepository, *MockTransactionManager)
		expectedStatus int
		checkBody      func(*testing.T, map[string]interface{})
	}{
		{
			name: "正常系: 返金成功",
			reqBody: map[string]interface{}{
				"amount": "100",
				"reason": "failed_generation",
			},
			setupMocks: func(mbr *MockBalanceRepository, mar *MockAllocationRepository, mer *MockEntryRepository, mtm *MockTransactionManager) {
				b := balance.MustNewBalance("acct123", 0, 0, 50, 1)

				mtm.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
				mbr.On("FindByAccountID", mock.Anything, "acct123").Return(b, nil)
				mar.On("Create", mock.Anything, mock.MatchedBy(func(a *allocation.Allocation) bool {
					return a.Kind() == allocation.KindTopup && a.AmountRemaining() == 100 && a.ExpiresAt() == nil
				})).Return(nil)
				mbr.On("Save", mock.Anything, mock.Anything).Return(nil)
				mer.On("Save", mock.Anything, mock.MatchedBy(func(e *ledger.Entry) bool {
					return e.Amount() == 100 && e.EntryType() == ledger.EntryTypeRefund
				})).Return(nil)
			},
			expectedStatus: http.StatusOK,
			checkBody: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "150", body["balance_after"])
				assert.Equal(t, "completed", body["status"])
			},
		},
		{
			name: "異常系: 金額が数値でない",
			reqBody: map[string]interface{}{
				"amount": "abc",
				"reason": "failed_generation",
			},
			setupMocks:     func(mbr *MockBalanceRepository, mar *MockAllocationRepository, mer *MockEntryRepository, mtm *MockTransactionManager) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "異常系: 金額が0以下",
			reqBody: map[string]interface{}{
				"amount": "0",
				"reason": "failed_generation",
			},
			setupMocks:     func(mbr *MockBalanceRepository, mar *MockAllocationRepository, mer *MockEntryRepository, mtm *MockTransactionManager) {},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			mbr := new(MockBalanceRepository)
			mar := new(MockAllocationRepository)
			mer := new(MockEntryRepository)
			mtm := new(MockTransactionManager)

			tt.setupMocks(mbr, mar, mer, mtm)

			handler := newTestBalanceHandler(mbr, mar, mer, mtm)

			bodyBytes, err := json.Marshal(tt.reqBody)
			require.NoError(t, err)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/accounts/acct123/refund", bytes.NewReader(bodyBytes))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)
			c.SetParamNames("account_id")
			c.SetParamValues("acct123")

			invokeHandler(e, c, handler.Refund)
			assert.Equal(t, tt.expectedStatus, rec.Code)

			if tt.checkBody != nil {
				var body map[string]interface{}
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				tt.checkBody(t, body)
			}

			mbr.AssertExpectations(t)
			mar.AssertExpectations(t)
			mer.AssertExpectations(t)
		})
	}
}
