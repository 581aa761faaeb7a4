package handler

import (
	"strings"

	appinv "github.com/fieldops/stockledger/internal/application/inventory"
	"github.com/fieldops/stockledger/internal/domain/inventory"
	"github.com/gin-gonic/gin"
)

// QueryHandler serves stock positions, ledger history and reconciliations
type QueryHandler struct {
	BaseHandler
	queryService *appinv.QueryService
}

// NewQueryHandler creates a new QueryHandler
func NewQueryHandler(queryService *appinv.QueryService) *QueryHandler {
	return &QueryHandler{queryService: queryService}
}

// ownerKinds accepts both the singular and the collection spelling used in URLs
var ownerKinds = map[string]inventory.OwnerKind{
	"store":       inventory.OwnerKindStore,
	"stores":      inventory.OwnerKindStore,
	"contractor":  inventory.OwnerKindContractor,
	"contractors": inventory.OwnerKindContractor,
}

func (h *QueryHandler) parseOwner(c *gin.Context) (inventory.Owner, bool) {
	kind, ok := ownerKinds[strings.ToLower(c.Param("kind"))]
	if !ok {
		h.BadRequest(c, "Owner kind must be store or contractor")
		return inventory.Owner{}, false
	}
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return inventory.Owner{}, false
	}
	return inventory.Owner{Kind: kind, ID: id}, true
}

// GetStock godoc
// @Summary      Current per-item totals of a store or contractor
// @Tags         queries
// @Param        kind path string true "store or contractor"
// @Param        id path string true "Owner ID" format(uuid)
// @Success      200 {object} dto.Response
// @Router       /owners/{kind}/{id}/stock [get]
func (h *QueryHandler) GetStock(c *gin.Context) {
	owner, ok := h.parseOwner(c)
	if !ok {
		return
	}

	stock, err := h.queryService.GetStock(c.Request.Context(), owner)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, stock)
}

// GetBatches godoc
// @Summary      Batch holdings of a store or contractor in FIFO order
// @Tags         queries
// @Param        kind path string true "store or contractor"
// @Param        id path string true "Owner ID" format(uuid)
// @Param        item_id query string false "Restrict to one item" format(uuid)
// @Success      200 {object} dto.Response
// @Router       /owners/{kind}/{id}/batches [get]
func (h *QueryHandler) GetBatches(c *gin.Context) {
	owner, ok := h.parseOwner(c)
	if !ok {
		return
	}
	itemID, ok := h.queryUUID(c, "item_id")
	if !ok {
		return
	}

	batches, err := h.queryService.GetBatches(c.Request.Context(), owner, itemID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, batches)
}

// ListTransactions godoc
// @Summary      Ledger entries, newest first
// @Tags         queries
// @Param        owner_kind query string false "STORE or CONTRACTOR"
// @Param        owner_id query string false "Owner ID" format(uuid)
// @Param        item_id query string false "Item ID" format(uuid)
// @Param        entry_type query string false "Entry type"
// @Param        request_id query string false "Stock request ID" format(uuid)
// @Param        from query string false "Inclusive lower bound"
// @Param        to query string false "Exclusive upper bound"
// @Success      200 {object} dto.Response
// @Router       /transactions [get]
func (h *QueryHandler) ListTransactions(c *gin.Context) {
	var filter appinv.TransactionListFilter
	var ok bool

	if raw := c.Query("owner_kind"); raw != "" {
		kind := inventory.OwnerKind(strings.ToUpper(raw))
		filter.OwnerKind = &kind
	}
	if raw := c.Query("entry_type"); raw != "" {
		entryType := inventory.EntryType(strings.ToUpper(raw))
		filter.EntryType = &entryType
	}
	if filter.OwnerID, ok = h.queryUUID(c, "owner_id"); !ok {
		return
	}
	if filter.ItemID, ok = h.queryUUID(c, "item_id"); !ok {
		return
	}
	if filter.RequestID, ok = h.queryUUID(c, "request_id"); !ok {
		return
	}
	if filter.From, ok = h.queryTime(c, "from"); !ok {
		return
	}
	if filter.To, ok = h.queryTime(c, "to"); !ok {
		return
	}
	if filter.Page, ok = h.queryInt(c, "page"); !ok {
		return
	}
	if filter.PageSize, ok = h.queryInt(c, "page_size"); !ok {
		return
	}

	result, err := h.queryService.GetTransactions(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	paginated(&h.BaseHandler, c, result)
}

// GetTransaction godoc
// @Summary      One posted transaction with its entries
// @Tags         queries
// @Param        id path string true "Transaction ID" format(uuid)
// @Success      200 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Router       /transactions/{id} [get]
func (h *QueryHandler) GetTransaction(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	txn, err := h.queryService.GetTransaction(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, txn)
}

// GetReconciliation godoc
// @Summary      Monthly balance sheet of a contractor against a store
// @Tags         queries
// @Param        contractor_id query string true "Contractor ID" format(uuid)
// @Param        store_id query string true "Store ID" format(uuid)
// @Param        month query string true "YYYY-MM"
// @Success      200 {object} dto.Response
// @Router       /reconciliations [get]
func (h *QueryHandler) GetReconciliation(c *gin.Context) {
	contractorID, ok := h.queryUUID(c, "contractor_id")
	if !ok {
		return
	}
	storeID, ok := h.queryUUID(c, "store_id")
	if !ok {
		return
	}
	if contractorID == nil || storeID == nil {
		h.BadRequest(c, "contractor_id and store_id are required")
		return
	}

	rec, err := h.queryService.GetReconciliation(c.Request.Context(), *contractorID, *storeID, c.Query("month"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, rec)
}

// AuditStock godoc
// @Summary      Owner totals that disagree with their batch holdings
// @Description  An empty list means every owner total equals the sum of its batch rows.
// @Tags         queries
// @Success      200 {object} dto.Response
// @Router       /stock-audit [get]
func (h *QueryHandler) AuditStock(c *gin.Context) {
	drifts, err := h.queryService.AuditStock(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, drifts)
}
