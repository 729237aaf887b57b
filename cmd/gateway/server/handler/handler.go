package handler

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vaishnaviprints/printlogic/cmd/gateway/server/service"
	"github.com/vaishnaviprints/printlogic/pkg/models"
	"github.com/vaishnaviprints/printlogic/pkg/utils"
)

type Handler struct {
	Service *service.Service
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Service: svc,
	}
}

func (h *Handler) Estimate(c *gin.Context) {
	var req models.EstimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("Invalid request format: %v", err)
		utils.SendValidationError(c, err)
		return
	}

	estimate, err := h.Service.Estimate(c, req)
	if err != nil {
		log.Printf("Failed to estimate: %v", err)
		utils.SendServiceError(c, err)
		return
	}

	utils.SendSuccess(c, http.StatusOK, "Estimate computed", estimate)
}

func (h *Handler) CreateOrder(c *gin.Context) {
	var req models.OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("Invalid request format: %v", err)
		utils.SendValidationError(c, err)
		return
	}

	order, err := h.Service.CreateOrder(c, &req)
	if err != nil {
		log.Printf("Failed to create order: %v", err)
		utils.SendServiceError(c, err)
		return
	}

	log.Printf("Order created: %s total=%.2f", order.OrderId, order.Total)
	utils.SendSuccess(c, http.StatusCreated, "Order created, awaiting payment", order)
}

func (h *Handler) GetOrder(c *gin.Context) {
	order, err := h.Service.GetOrder(c, c.Param("id"))
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}

	utils.SendSuccess(c, http.StatusOK, "Order retrieved", order)
}

func (h *Handler) PayOrder(c *gin.Context) {
	order, err := h.Service.PayOrder(c, c.Param("id"))
	if err != nil {
		log.Printf("Failed to pay order %s: %v", c.Param("id"), err)
		utils.SendServiceError(c, err)
		return
	}

	response := models.OrderResponse{
		OrderId: order.OrderId,
		Status:  order.Status,
		Message: "Payment recorded, vendor assignment started",
	}
	utils.SendSuccess(c, http.StatusOK, response.Message, response)
}

func (h *Handler) CancelOrder(c *gin.Context) {
	var body struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&body)

	if err := h.Service.CancelOrder(c, c.Param("id"), body.Reason); err != nil {
		log.Printf("Failed to cancel order %s: %v", c.Param("id"), err)
		utils.SendServiceError(c, err)
		return
	}

	utils.SendSuccess(c, http.StatusAccepted, "Cancellation requested", nil)
}

func (h *Handler) VendorRespond(c *gin.Context) {
	var resp models.VendorResponse
	if err := c.ShouldBindJSON(&resp); err != nil {
		log.Printf("Invalid request format: %v", err)
		utils.SendValidationError(c, err)
		return
	}
	resp.OrderId = c.Param("id")

	if err := h.Service.VendorRespond(c, resp); err != nil {
		log.Printf("Failed to forward vendor response: %v", err)
		utils.SendServiceError(c, err)
		return
	}

	utils.SendSuccess(c, http.StatusAccepted, "Response recorded", nil)
}

func (h *Handler) RegisterVendor(c *gin.Context) {
	var vendor models.Vendor
	if err := c.ShouldBindJSON(&vendor); err != nil {
		log.Printf("Invalid request format: %v", err)
		utils.SendValidationError(c, err)
		return
	}

	saved, err := h.Service.RegisterVendor(c, vendor)
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}

	utils.SendSuccess(c, http.StatusCreated, "Vendor registered", saved)
}

func (h *Handler) ListManualQueue(c *gin.Context) {
	parked, err := h.Service.ListManualQueue(c)
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}

	utils.SendSuccess(c, http.StatusOK, "Manual assignment queue", parked)
}

func (h *Handler) ManualAssign(c *gin.Context) {
	var body struct {
		VendorId   string `json:"vendor_id" binding:"required"`
		AssignedBy string `json:"assigned_by"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.SendValidationError(c, err)
		return
	}

	if err := h.Service.ManualAssign(c, c.Param("id"), body.VendorId, body.AssignedBy); err != nil {
		log.Printf("Failed to request manual assignment: %v", err)
		utils.SendServiceError(c, err)
		return
	}

	utils.SendSuccess(c, http.StatusAccepted, "Manual assignment requested", nil)
}

func (h *Handler) CreateRule(c *gin.Context) {
	var rule models.PriceRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		log.Printf("Invalid request format: %v", err)
		utils.SendValidationError(c, err)
		return
	}

	saved, err := h.Service.CreateRule(c, rule)
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}

	utils.SendSuccess(c, http.StatusCreated, "Price rule published", saved)
}

func (h *Handler) HealthCheck(c *gin.Context) {
	health := map[string]any{
		"status":  "healthy",
		"service": "api-gateway",
	}
	utils.SendSuccess(c, http.StatusOK, "Service is Healthy", health)
}
