package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	appevent "github.com/fieldops/stockledger/internal/application/event"
	appinv "github.com/fieldops/stockledger/internal/application/inventory"
	apprequisition "github.com/fieldops/stockledger/internal/application/requisition"
	"github.com/fieldops/stockledger/internal/domain/inventory"
	"github.com/fieldops/stockledger/internal/infrastructure/event"
	"github.com/fieldops/stockledger/internal/infrastructure/numbering"
	"github.com/fieldops/stockledger/internal/infrastructure/persistence"
	"github.com/fieldops/stockledger/internal/interfaces/http/dto"
	"github.com/fieldops/stockledger/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// apiFixture serves the handlers over an in-memory SQLite database
type apiFixture struct {
	t      *testing.T
	db     *gorm.DB
	engine *gin.Engine
	outbox *event.GormOutboxRepository
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, persistence.AutoMigrate(db))

	serializer := event.NewEventSerializer()
	event.RegisterAllEvents(serializer)
	scope := persistence.NewGormTransactionScope(db, event.NewOutboxPublisher(serializer))
	numbers, err := numbering.NewSnowflakeGenerator(3)
	require.NoError(t, err)

	log := zaptest.NewLogger(t)
	ledger := appinv.NewLedgerService(scope, numbers, inventory.NewWastageChecker(0), log)
	outboxRepo := event.NewGormOutboxRepository(db)

	catalogH := NewCatalogHandler(appinv.NewCatalogService(scope, log))
	ledgerH := NewLedgerHandler(ledger)
	queryH := NewQueryHandler(appinv.NewQueryService(scope))
	requestH := NewStockRequestHandler(apprequisition.NewStockRequestService(scope, ledger, numbers, log))
	outboxH := NewOutboxHandler(appevent.NewOutboxService(outboxRepo, log))

	middleware.SetupValidator()
	engine := gin.New()
	engine.Use(middleware.RequestID(), middleware.RequestLogger(log), middleware.Actor())

	api := engine.Group("/api/v1")
	api.POST("/items", catalogH.CreateItem)
	api.GET("/items", catalogH.ListItems)
	api.GET("/items/:id", catalogH.GetItem)
	api.PUT("/items/:id", catalogH.UpdateItem)
	api.DELETE("/items/:id", catalogH.DeleteItem)
	api.POST("/stores", catalogH.CreateStore)
	api.GET("/stores", catalogH.ListStores)
	api.POST("/contractors", catalogH.CreateContractor)
	api.GET("/contractors", catalogH.ListContractors)
	api.POST("/contractors/:id/activate", catalogH.ActivateContractor)
	api.POST("/contractors/:id/deactivate", catalogH.DeactivateContractor)

	api.POST("/grns", ledgerH.CreateGRN)
	api.POST("/issues", ledgerH.IssueToContractor)
	api.POST("/transfers", ledgerH.TransferBetweenStores)
	api.POST("/returns", ledgerH.ReturnFromContractor)
	api.POST("/supplier-returns", ledgerH.ReturnToSupplier)
	api.POST("/wastages", ledgerH.RecordWastage)
	api.POST("/usages", ledgerH.RecordUsage)

	api.GET("/owners/:kind/:id/stock", queryH.GetStock)
	api.GET("/owners/:kind/:id/batches", queryH.GetBatches)
	api.GET("/transactions", queryH.ListTransactions)
	api.GET("/transactions/:id", queryH.GetTransaction)
	api.GET("/reconciliations", queryH.GetReconciliation)
	api.GET("/stock-audit", queryH.AuditStock)

	api.POST("/stock-requests", requestH.Create)
	api.GET("/stock-requests", requestH.List)
	api.GET("/stock-requests/:id", requestH.Get)
	api.POST("/stock-requests/:id/actions", requestH.Act)
	api.POST("/stock-requests/:id/release", requestH.Release)
	api.POST("/stock-requests/:id/receive", requestH.Receive)

	api.GET("/system/outbox/dead", outboxH.GetDeadLetterEntries)
	api.GET("/system/outbox/stats", outboxH.GetStats)
	api.POST("/system/outbox/dead/retry-all", outboxH.RetryAllDeadEntries)
	api.GET("/system/outbox/:id", outboxH.GetEntry)
	api.POST("/system/outbox/:id/retry", outboxH.RetryDeadEntry)

	return &apiFixture{t: t, db: db, engine: engine, outbox: outboxRepo}
}

// do sends a JSON request as actor; an empty actor sends no actor headers
func (f *apiFixture) do(method, path string, body any, actor string) (*httptest.ResponseRecorder, dto.Response) {
	f.t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(f.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, "/api/v1"+path, reader)
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set(middleware.ActorIDHeader, actor)
		req.Header.Set(middleware.ActorRoleHeader, "tester")
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	var resp dto.Response
	if w.Body.Len() > 0 {
		require.NoError(f.t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w, resp
}

// mustDo is do that requires the given status
func (f *apiFixture) mustDo(status int, method, path string, body any) dto.Response {
	f.t.Helper()
	w, resp := f.do(method, path, body, "keeper-1")
	require.Equal(f.t, status, w.Code, w.Body.String())
	return resp
}

// decodeData re-decodes the untyped data field into T
func decodeData[T any](t *testing.T, resp dto.Response) T {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

type catalogIDs struct {
	main       uuid.UUID
	sub        uuid.UUID
	contractor uuid.UUID
	cable      uuid.UUID
}

// seedCatalog registers a MAIN and a SUB store, a contractor and a cable item
func (f *apiFixture) seedCatalog() catalogIDs {
	f.t.Helper()
	main := decodeData[appinv.StoreResponse](f.t, f.mustDo(http.StatusCreated, http.MethodPost, "/stores",
		map[string]any{"code": "MAIN", "name": "Central store", "kind": "MAIN"}))
	sub := decodeData[appinv.StoreResponse](f.t, f.mustDo(http.StatusCreated, http.MethodPost, "/stores",
		map[string]any{"code": "SUB-N", "name": "North depot", "kind": "SUB"}))
	crew := decodeData[appinv.ContractorResponse](f.t, f.mustDo(http.StatusCreated, http.MethodPost, "/contractors",
		map[string]any{"code": "CT-01", "name": "Fibre crew"}))
	cable := decodeData[appinv.ItemResponse](f.t, f.mustDo(http.StatusCreated, http.MethodPost, "/items",
		map[string]any{
			"code": "CABLE", "name": "Drop cable", "unit": "m",
			"cost_price": "3", "unit_price": "4",
			"wastage_allowed": true, "max_wastage_percent": "10",
		}))
	return catalogIDs{main: main.ID, sub: sub.ID, contractor: crew.ID, cable: cable.ID}
}

// receive posts a GRN of qty units of item into store
func (f *apiFixture) receive(store, item uuid.UUID, qty string) appinv.LedgerTransactionResponse {
	f.t.Helper()
	return decodeData[appinv.LedgerTransactionResponse](f.t, f.mustDo(http.StatusCreated, http.MethodPost, "/grns",
		map[string]any{
			"store_id": store,
			"source":   "SLT",
			"lines":    []map[string]any{{"item_id": item, "quantity": qty}},
		}))
}
