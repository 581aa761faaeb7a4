package handler

import (
	"strings"

	apprequisition "github.com/fieldops/stockledger/internal/application/requisition"
	"github.com/fieldops/stockledger/internal/domain/requisition"
	"github.com/gin-gonic/gin"
)

// StockRequestHandler drives the stock request approval workflow
type StockRequestHandler struct {
	BaseHandler
	requestService *apprequisition.StockRequestService
}

// NewStockRequestHandler creates a new StockRequestHandler
func NewStockRequestHandler(requestService *apprequisition.StockRequestService) *StockRequestHandler {
	return &StockRequestHandler{requestService: requestService}
}

// Create godoc
// @Summary      Raise a stock request
// @Tags         stock-requests
// @Param        request body apprequisition.CreateStockRequestCommand true "Request"
// @Success      201 {object} dto.Response
// @Failure      400 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Router       /stock-requests [post]
func (h *StockRequestHandler) Create(c *gin.Context) {
	var cmd apprequisition.CreateStockRequestCommand
	if !h.bindJSON(c, &cmd) {
		return
	}
	cmd.Actor = getActor(c)

	request, err := h.requestService.Create(c.Request.Context(), cmd)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, request)
}

// List godoc
// @Summary      List stock requests, newest first
// @Tags         stock-requests
// @Param        stage query string false "Workflow stage"
// @Param        status query string false "Status"
// @Param        origin_store_id query string false "Origin store" format(uuid)
// @Param        requester_id query string false "Requester"
// @Success      200 {object} dto.Response
// @Router       /stock-requests [get]
func (h *StockRequestHandler) List(c *gin.Context) {
	query := apprequisition.ListStockRequestsQuery{
		RequesterID: c.Query("requester_id"),
		OrderBy:     c.Query("order_by"),
		OrderDir:    c.Query("order_dir"),
	}
	var ok bool

	if raw := c.Query("stage"); raw != "" {
		stage := requisition.Stage(strings.ToUpper(raw))
		query.Stage = &stage
	}
	if raw := c.Query("status"); raw != "" {
		status := requisition.Status(strings.ToUpper(raw))
		query.Status = &status
	}
	if query.OriginStoreID, ok = h.queryUUID(c, "origin_store_id"); !ok {
		return
	}
	if query.Page, ok = h.queryInt(c, "page"); !ok {
		return
	}
	if query.PageSize, ok = h.queryInt(c, "page_size"); !ok {
		return
	}

	result, err := h.requestService.List(c.Request.Context(), query)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	paginated(&h.BaseHandler, c, result)
}

// Get godoc
// @Summary      Get a stock request with its approval history
// @Tags         stock-requests
// @Param        id path string true "Request ID" format(uuid)
// @Success      200 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Router       /stock-requests/{id} [get]
func (h *StockRequestHandler) Get(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	request, err := h.requestService.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, request)
}

// Act godoc
// @Summary      Apply a workflow action (approve, reject, resubmit, procurement, release, receive)
// @Description  The acting user always comes from the X-Actor-ID and X-Actor-Role headers.
// @Tags         stock-requests
// @Param        id path string true "Request ID" format(uuid)
// @Param        request body requisition.Action true "Action"
// @Success      200 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Router       /stock-requests/{id}/actions [post]
func (h *StockRequestHandler) Act(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var action requisition.Action
	if !h.bindJSON(c, &action) {
		return
	}
	action.Actor = getActor(c)

	request, err := h.requestService.Act(c.Request.Context(), id, action)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, request)
}

// Release godoc
// @Summary      Release approved quantities from the MAIN store
// @Tags         stock-requests
// @Param        id path string true "Request ID" format(uuid)
// @Param        request body apprequisition.ReleaseCommand true "Lines to release; empty releases everything outstanding"
// @Success      200 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Router       /stock-requests/{id}/release [post]
func (h *StockRequestHandler) Release(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var cmd apprequisition.ReleaseCommand
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &cmd) {
		return
	}
	cmd.Actor = getActor(c)

	request, err := h.requestService.Release(c.Request.Context(), id, cmd)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, request)
}

// Receive godoc
// @Summary      Confirm released stock arrived at the origin store
// @Tags         stock-requests
// @Param        id path string true "Request ID" format(uuid)
// @Param        request body apprequisition.ReceiveCommand true "Received lines"
// @Success      200 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Router       /stock-requests/{id}/receive [post]
func (h *StockRequestHandler) Receive(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var cmd apprequisition.ReceiveCommand
	if !h.bindJSON(c, &cmd) {
		return
	}
	cmd.Actor = getActor(c)

	request, err := h.requestService.Receive(c.Request.Context(), id, cmd)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, request)
}
