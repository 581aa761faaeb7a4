package handler

import (
	appinv "github.com/fieldops/stockledger/internal/application/inventory"
	"github.com/fieldops/stockledger/internal/domain/inventory"
	"github.com/fieldops/stockledger/internal/domain/shared"
	"github.com/fieldops/stockledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// CatalogHandler handles items, stores and contractors
type CatalogHandler struct {
	BaseHandler
	catalogService *appinv.CatalogService
}

// NewCatalogHandler creates a new CatalogHandler
func NewCatalogHandler(catalogService *appinv.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalogService: catalogService}
}

// ItemListQuery filters item listings
type ItemListQuery struct {
	dto.ListRequest
	Search string `form:"search" binding:"max=100"`
}

func listFilter(q dto.ListRequest) shared.Filter {
	q = q.Normalize()
	return shared.Filter{Page: q.Page, PageSize: q.PageSize, OrderBy: q.OrderBy, OrderDir: q.OrderDir}
}

// CreateItem godoc
// @Summary      Register an item
// @Tags         items
// @Param        request body appinv.CreateItemCommand true "Item"
// @Success      201 {object} dto.Response
// @Failure      400 {object} dto.Response
// @Failure      409 {object} dto.Response
// @Router       /items [post]
func (h *CatalogHandler) CreateItem(c *gin.Context) {
	var cmd appinv.CreateItemCommand
	if !h.bindJSON(c, &cmd) {
		return
	}

	item, err := h.catalogService.CreateItem(c.Request.Context(), cmd)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, item)
}

// UpdateItem godoc
// @Summary      Update an item
// @Tags         items
// @Param        id path string true "Item ID" format(uuid)
// @Param        request body appinv.UpdateItemCommand true "Changes"
// @Success      200 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Router       /items/{id} [put]
func (h *CatalogHandler) UpdateItem(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var cmd appinv.UpdateItemCommand
	if !h.bindJSON(c, &cmd) {
		return
	}

	item, err := h.catalogService.UpdateItem(c.Request.Context(), id, cmd)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, item)
}

// GetItem godoc
// @Summary      Get an item
// @Tags         items
// @Param        id path string true "Item ID" format(uuid)
// @Success      200 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Router       /items/{id} [get]
func (h *CatalogHandler) GetItem(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	item, err := h.catalogService.GetItem(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, item)
}

// ListItems godoc
// @Summary      List items
// @Tags         items
// @Param        search query string false "Code or name fragment"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Items per page" default(20) maximum(100)
// @Param        order_by query string false "code, name, unit, cost_price, created_at or updated_at"
// @Param        order_dir query string false "asc or desc"
// @Success      200 {object} dto.Response
// @Router       /items [get]
func (h *CatalogHandler) ListItems(c *gin.Context) {
	var q ItemListQuery
	if !h.bindQuery(c, &q) {
		return
	}

	result, err := h.catalogService.ListItems(c.Request.Context(), inventory.ItemFilter{
		Filter: listFilter(q.ListRequest),
		Search: q.Search,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	paginated(&h.BaseHandler, c, result)
}

// DeleteItem godoc
// @Summary      Delete an item that never moved
// @Tags         items
// @Param        id path string true "Item ID" format(uuid)
// @Success      204
// @Failure      404 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Router       /items/{id} [delete]
func (h *CatalogHandler) DeleteItem(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.catalogService.DeleteItem(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// CreateStore godoc
// @Summary      Register a store
// @Tags         stores
// @Param        request body appinv.CreateStoreCommand true "Store"
// @Success      201 {object} dto.Response
// @Failure      409 {object} dto.Response
// @Router       /stores [post]
func (h *CatalogHandler) CreateStore(c *gin.Context) {
	var cmd appinv.CreateStoreCommand
	if !h.bindJSON(c, &cmd) {
		return
	}

	store, err := h.catalogService.CreateStore(c.Request.Context(), cmd)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, store)
}

// ListStores godoc
// @Summary      List stores
// @Tags         stores
// @Success      200 {object} dto.Response
// @Router       /stores [get]
func (h *CatalogHandler) ListStores(c *gin.Context) {
	var q dto.ListRequest
	if !h.bindQuery(c, &q) {
		return
	}

	result, err := h.catalogService.ListStores(c.Request.Context(), listFilter(q))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	paginated(&h.BaseHandler, c, result)
}

// CreateContractor godoc
// @Summary      Register a contractor
// @Tags         contractors
// @Param        request body appinv.CreateContractorCommand true "Contractor"
// @Success      201 {object} dto.Response
// @Router       /contractors [post]
func (h *CatalogHandler) CreateContractor(c *gin.Context) {
	var cmd appinv.CreateContractorCommand
	if !h.bindJSON(c, &cmd) {
		return
	}

	contractor, err := h.catalogService.CreateContractor(c.Request.Context(), cmd)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, contractor)
}

// ListContractors godoc
// @Summary      List contractors
// @Tags         contractors
// @Success      200 {object} dto.Response
// @Router       /contractors [get]
func (h *CatalogHandler) ListContractors(c *gin.Context) {
	var q dto.ListRequest
	if !h.bindQuery(c, &q) {
		return
	}

	result, err := h.catalogService.ListContractors(c.Request.Context(), listFilter(q))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	paginated(&h.BaseHandler, c, result)
}

// ActivateContractor godoc
// @Summary      Activate a contractor
// @Tags         contractors
// @Param        id path string true "Contractor ID" format(uuid)
// @Success      200 {object} dto.Response
// @Router       /contractors/{id}/activate [post]
func (h *CatalogHandler) ActivateContractor(c *gin.Context) {
	h.setContractorActive(c, true)
}

// DeactivateContractor godoc
// @Summary      Deactivate a contractor; inactive contractors cannot receive issues
// @Tags         contractors
// @Param        id path string true "Contractor ID" format(uuid)
// @Success      200 {object} dto.Response
// @Router       /contractors/{id}/deactivate [post]
func (h *CatalogHandler) DeactivateContractor(c *gin.Context) {
	h.setContractorActive(c, false)
}

func (h *CatalogHandler) setContractorActive(c *gin.Context, active bool) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	contractor, err := h.catalogService.SetContractorActive(c.Request.Context(), id, active)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, contractor)
}
