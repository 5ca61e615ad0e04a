package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"pos-terminal/internal/cart"
	"pos-terminal/internal/checkout"
	"pos-terminal/internal/controller"
	"pos-terminal/internal/models"
	"pos-terminal/internal/store"
	"pos-terminal/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultSalesLimit = 100

// Pinger is a dependency checked by the readiness probe
type Pinger interface {
	Ping(ctx context.Context) error
}

// SalesReport reads the sales journal
type SalesReport interface {
	ListSales(ctx context.Context, from, to time.Time, limit int) ([]models.Receipt, error)
	Summarize(ctx context.Context, from, to time.Time) (*store.SalesSummary, error)
}

// Handler contains HTTP handlers
type Handler struct {
	ctrl  *controller.Controller
	sales SalesReport
	deps  map[string]Pinger
}

// NewHandler creates a new HTTP handler. sales may be nil when no journal is configured.
func NewHandler(ctrl *controller.Controller, sales SalesReport, deps map[string]Pinger) *Handler {
	return &Handler{
		ctrl:  ctrl,
		sales: sales,
		deps:  deps,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/terminal", h.getView)

		v1.GET("/products", h.listProducts)
		v1.POST("/products/refresh", h.refreshProducts)

		v1.POST("/cart/items", h.addItem)
		v1.PATCH("/cart/items/:index", h.adjustItem)
		v1.DELETE("/cart/items/:index", h.removeItem)
		v1.DELETE("/cart", h.clearCart)

		v1.PUT("/payment", h.setPayment)
		v1.POST("/checkout", h.checkout)

		v1.GET("/receipts/last", h.lastReceipt)
		v1.GET("/receipts/:order_id", h.getReceipt)

		v1.GET("/sales", h.listSales)
		v1.GET("/sales/summary", h.salesSummary)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every configured dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, dep := range h.deps {
		if err := dep.Ping(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "not ready",
			"details": failed,
			"time":    time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) getView(c *gin.Context) {
	c.JSON(http.StatusOK, h.ctrl.View())
}

// respond renders the view after a cart action. Validation failures are
// 422 with the same view, notices included.
func (h *Handler) respond(c *gin.Context, err error) {
	switch {
	case err == nil:
		c.JSON(http.StatusOK, h.ctrl.View())
	case cart.IsValidation(err):
		c.JSON(http.StatusUnprocessableEntity, h.ctrl.View())
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": err.Error(),
			"view":  h.ctrl.View(),
		})
	}
}

func (h *Handler) listProducts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"products": h.ctrl.Products(c.Query("search")),
	})
}

func (h *Handler) refreshProducts(c *gin.Context) {
	if err := h.ctrl.Refresh(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"error": err.Error(),
			"view":  h.ctrl.View(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"products": h.ctrl.Products(""),
	})
}

type addItemRequest struct {
	ProductID models.ProductID `json:"product_id" binding:"required"`
}

func (h *Handler) addItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	h.respond(c, h.ctrl.AddProduct(req.ProductID))
}

type adjustItemRequest struct {
	Delta int `json:"delta" binding:"required"`
}

func (h *Handler) adjustItem(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}

	var req adjustItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	h.respond(c, h.ctrl.AdjustQuantity(index, req.Delta))
}

func (h *Handler) removeItem(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	h.respond(c, h.ctrl.RemoveItem(index))
}

func (h *Handler) clearCart(c *gin.Context) {
	confirmed, _ := strconv.ParseBool(c.Query("confirm"))
	h.respond(c, h.ctrl.ClearCart(confirmed))
}

type paymentRequest struct {
	Discount      *string `json:"discount"`
	AmountPaid    *string `json:"amount_paid"`
	PaymentMethod *string `json:"payment_method"`
}

// setPayment updates the pricing inputs present in the body
func (h *Handler) setPayment(c *gin.Context) {
	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if req.Discount != nil {
		h.ctrl.SetDiscount(*req.Discount)
	}
	if req.AmountPaid != nil {
		h.ctrl.SetAmountPaid(*req.AmountPaid)
	}
	var err error
	if req.PaymentMethod != nil {
		err = h.ctrl.SetPaymentMethod(*req.PaymentMethod)
	}
	h.respond(c, err)
}

func (h *Handler) checkout(c *gin.Context) {
	out := h.ctrl.Checkout(c.Request.Context())

	if out.Ignored {
		c.JSON(http.StatusAccepted, gin.H{
			"ignored": true,
			"reason":  out.IgnoreReason,
			"view":    h.ctrl.View(),
		})
		return
	}

	if out.Err != nil {
		body := gin.H{
			"error": out.Err.Error(),
			"view":  h.ctrl.View(),
		}
		var receiptErr *checkout.ReceiptError
		var unconfirmed *checkout.UnconfirmedOrderError
		switch {
		case errors.As(out.Err, &receiptErr):
			body["order_id"] = receiptErr.OrderID
		case errors.As(out.Err, &unconfirmed):
			body["order_unconfirmed"] = true
		}
		c.JSON(http.StatusBadGateway, body)
		return
	}

	receipt, _ := h.ctrl.LastReceipt()
	c.JSON(http.StatusCreated, gin.H{
		"order_id": out.OrderID(),
		"receipt":  receipt,
		"view":     h.ctrl.View(),
	})
}

func (h *Handler) lastReceipt(c *gin.Context) {
	receipt, ok := h.ctrl.LastReceipt()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "No receipt yet",
		})
		return
	}
	renderReceipt(c, receipt)
}

func (h *Handler) getReceipt(c *gin.Context) {
	receipt, err := h.ctrl.Receipt(c.Request.Context(), c.Param("order_id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Receipt not found",
			"details": err.Error(),
		})
		return
	}
	renderReceipt(c, receipt)
}

// renderReceipt answers JSON, or the bare HTML fragment with ?format=html
func renderReceipt(c *gin.Context, r *models.Receipt) {
	if c.Query("format") == "html" {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(r.HTML))
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *Handler) listSales(c *gin.Context) {
	from, to, ok := h.period(c)
	if !ok {
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultSalesLimit)))
	if err != nil || limit <= 0 {
		limit = defaultSalesLimit
	}

	sales, err := h.sales.ListSales(c.Request.Context(), from, to, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to list sales",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sales": sales})
}

func (h *Handler) salesSummary(c *gin.Context) {
	from, to, ok := h.period(c)
	if !ok {
		return
	}

	sum, err := h.sales.Summarize(c.Request.Context(), from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to summarize sales",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, sum)
}

// period parses ?from=&to= as RFC 3339; the default is the current UTC day
func (h *Handler) period(c *gin.Context) (time.Time, time.Time, bool) {
	if h.sales == nil {
		c.JSON(http.StatusNotImplemented, gin.H{
			"error": "Sales journal is not configured",
		})
		return time.Time{}, time.Time{}, false
	}

	now := time.Now().UTC()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	for _, p := range []struct {
		name string
		dst  *time.Time
	}{{"from", &from}, {"to", &to}} {
		raw := c.Query(p.name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid " + p.name,
				"details": err.Error(),
			})
			return time.Time{}, time.Time{}, false
		}
		*p.dst = t
	}
	return from, to, true
}

func indexParam(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid item index",
		})
		return 0, false
	}
	return index, true
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
