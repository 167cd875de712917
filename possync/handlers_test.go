package possync_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bitbucket.org/mmdatafocus/pos_terminal/models"
	"bitbucket.org/mmdatafocus/pos_terminal/possync"
	"bitbucket.org/mmdatafocus/pos_terminal/utils"
	"github.com/gin-gonic/gin"
)

func newTestRouter(t *testing.T, engine *possync.Engine) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		ctx := utils.SetBusinessIdInContext(c.Request.Context(), "biz-test")
		ctx = utils.SetTerminalIdInContext(ctx, "terminal-test")
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})
	r.GET("/v1/sync/status", possync.StatusHandler(engine))
	r.POST("/v1/sync/flush", possync.FlushHandler(engine))
	r.POST("/v1/orders", possync.EnqueueOrderHandler())
	return r
}

func newTestEngine(server *fakeServer) *possync.Engine {
	state := possync.NewStateManager()
	return &possync.Engine{
		State:      state,
		Monitor:    possync.NewNetworkMonitor(server, nil),
		Pusher:     &possync.Pusher{Client: server, State: state, TerminalId: "terminal-test"},
		TerminalId: "terminal-test",
	}
}

func TestEnqueueOrderEndpoint(t *testing.T) {
	ctx := setupTerminalDB(t)

	server := &fakeServer{}
	router := newTestRouter(t, newTestEngine(server))

	body := `{
		"transaction_id": "tx-http-1",
		"payment_method": "CASH",
		"total_amount": "120",
		"details": [{"name": "Latte", "qty": "2", "unit_price": "60", "line_total": "120"}]
	}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/orders", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s, want 201", w.Code, w.Body.String())
	}

	got, err := models.GetTransactionByTransactionId(ctx, "tx-http-1")
	if err != nil {
		t.Fatalf("GetTransactionByTransactionId: %v", err)
	}
	if got.Status != models.TransactionStatusPending {
		t.Fatalf("status = %s, want PENDING", got.Status)
	}
}

func TestEnqueueOrderEndpointRejectsMissingKey(t *testing.T) {
	setupTerminalDB(t)

	router := newTestRouter(t, newTestEngine(&fakeServer{}))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/orders", strings.NewReader(`{"total_amount": "120"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	ctx := setupTerminalDB(t)

	enqueueOrder(t, ctx, "tx-status-1", 120)
	enqueueOrder(t, ctx, "tx-status-2", 85)

	router := newTestRouter(t, newTestEngine(&fakeServer{}))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/sync/status", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s, want 200", w.Code, w.Body.String())
	}
	var resp possync.StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.PendingCount != 2 {
		t.Fatalf("pending count = %d, want 2", resp.PendingCount)
	}
	if resp.Phase != string(possync.PhaseIdle) {
		t.Fatalf("phase = %s, want Idle", resp.Phase)
	}
	if resp.Online {
		t.Fatal("reported online without a successful probe")
	}
}

func TestFlushEndpointConflictsWhileSyncing(t *testing.T) {
	setupTerminalDB(t)

	engine := newTestEngine(&fakeServer{})
	router := newTestRouter(t, engine)

	release, err := engine.State.Begin(possync.PhaseMerging)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer release()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/sync/flush", nil))

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409 while another phase holds the store", w.Code)
	}
}
