package handler

import (
	"context"

	appinv "github.com/fieldops/stockledger/internal/application/inventory"
	"github.com/gin-gonic/gin"
)

// LedgerHandler posts stock movements: receipts, issues, transfers, returns, write-offs and usage
type LedgerHandler struct {
	BaseHandler
	ledgerService *appinv.LedgerService
}

// NewLedgerHandler creates a new LedgerHandler
func NewLedgerHandler(ledgerService *appinv.LedgerService) *LedgerHandler {
	return &LedgerHandler{ledgerService: ledgerService}
}

// postMovement binds the command, stamps the acting user and answers 201 with the posted transaction
func postMovement[C any](
	h *LedgerHandler,
	c *gin.Context,
	stamp func(*C),
	post func(context.Context, C) (*appinv.LedgerTransactionResponse, error),
) {
	var cmd C
	if !h.bindJSON(c, &cmd) {
		return
	}
	stamp(&cmd)

	txn, err := post(c.Request.Context(), cmd)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, txn)
}

// CreateGRN godoc
// @Summary      Record a goods received note
// @Tags         ledger
// @Param        request body appinv.CreateGRNCommand true "GRN"
// @Success      201 {object} dto.Response
// @Failure      400 {object} dto.Response
// @Router       /grns [post]
func (h *LedgerHandler) CreateGRN(c *gin.Context) {
	postMovement(h, c, func(cmd *appinv.CreateGRNCommand) { cmd.Actor = getActor(c) }, h.ledgerService.CreateGRN)
}

// IssueToContractor godoc
// @Summary      Issue store stock to a contractor
// @Tags         ledger
// @Param        request body appinv.IssueCommand true "Issue"
// @Success      201 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Router       /issues [post]
func (h *LedgerHandler) IssueToContractor(c *gin.Context) {
	postMovement(h, c, func(cmd *appinv.IssueCommand) { cmd.Actor = getActor(c) }, h.ledgerService.IssueToContractor)
}

// TransferBetweenStores godoc
// @Summary      Move stock between two stores
// @Tags         ledger
// @Param        request body appinv.TransferCommand true "Transfer"
// @Success      201 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Router       /transfers [post]
func (h *LedgerHandler) TransferBetweenStores(c *gin.Context) {
	postMovement(h, c, func(cmd *appinv.TransferCommand) { cmd.Actor = getActor(c) }, h.ledgerService.TransferBetweenStores)
}

// ReturnFromContractor godoc
// @Summary      Return contractor stock to a store
// @Tags         ledger
// @Param        request body appinv.ReturnCommand true "Return"
// @Success      201 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Router       /returns [post]
func (h *LedgerHandler) ReturnFromContractor(c *gin.Context) {
	postMovement(h, c, func(cmd *appinv.ReturnCommand) { cmd.Actor = getActor(c) }, h.ledgerService.ReturnFromContractor)
}

// ReturnToSupplier godoc
// @Summary      Send store stock back to the supplier
// @Tags         ledger
// @Param        request body appinv.SupplierReturnCommand true "Supplier return"
// @Success      201 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Router       /supplier-returns [post]
func (h *LedgerHandler) ReturnToSupplier(c *gin.Context) {
	postMovement(h, c, func(cmd *appinv.SupplierReturnCommand) { cmd.Actor = getActor(c) }, h.ledgerService.ReturnToSupplier)
}

// RecordWastage godoc
// @Summary      Write off wasted stock
// @Tags         ledger
// @Param        request body appinv.WastageCommand true "Wastage"
// @Success      201 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Router       /wastages [post]
func (h *LedgerHandler) RecordWastage(c *gin.Context) {
	postMovement(h, c, func(cmd *appinv.WastageCommand) { cmd.Actor = getActor(c) }, h.ledgerService.RecordWastage)
}

// RecordUsage godoc
// @Summary      Record contractor consumption against a service order
// @Tags         ledger
// @Param        request body appinv.UsageCommand true "Usage"
// @Success      201 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Router       /usages [post]
func (h *LedgerHandler) RecordUsage(c *gin.Context) {
	postMovement(h, c, func(cmd *appinv.UsageCommand) { cmd.Actor = getActor(c) }, h.ledgerService.RecordUsage)
}
