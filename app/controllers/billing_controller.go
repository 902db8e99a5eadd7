package controllers

import (
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/EdukitaHQ/edukita/app/models"
	"github.com/EdukitaHQ/edukita/app/repository"
	"github.com/EdukitaHQ/edukita/internal/pkg/database"
	"github.com/EdukitaHQ/edukita/internal/pkg/discount"
	"github.com/EdukitaHQ/edukita/internal/pkg/env"
	"github.com/EdukitaHQ/edukita/internal/pkg/mail"
	"github.com/EdukitaHQ/edukita/internal/pkg/payment"
	"github.com/EdukitaHQ/edukita/internal/pkg/security"
	"github.com/EdukitaHQ/edukita/internal/pkg/usercontext"
)

type checkoutRequest struct {
	PlanID       string `json:"plan_id"`
	BillingCycle string `json:"billing_cycle"`
	DiscountCode string `json:"discount_code"`
	FinishURL    string `json:"finish_url"`
}

// midtransNotification is the subset of the gateway callback body we need.
// The payload is never trusted for status; it only identifies the payment.
type midtransNotification struct {
	OrderID      string `json:"order_id"`
	StatusCode   string `json:"status_code"`
	GrossAmount  string `json:"gross_amount"`
	SignatureKey string `json:"signature_key"`
}

// HandleCheckout creates a pending payment and a gateway checkout session.
func HandleCheckout(c *fiber.Ctx) error {
	uc := usercontext.GetUserContext(c)
	if !uc.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Login required")
	}

	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", "Malformed JSON body")
	}
	if req.BillingCycle == "" {
		req.BillingCycle = "monthly"
	}

	result, err := paymentService().Checkout(c.Context(), payment.CheckoutInput{
		UserID:       uc.UserID,
		PlanID:       req.PlanID,
		BillingCycle: req.BillingCycle,
		DiscountCode: req.DiscountCode,
		FinishURL:    req.FinishURL,
	})
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrUnknownPlan):
			return jsonError(c, fiber.StatusBadRequest, "unknown_plan", "Plan is not purchasable")
		case errors.Is(err, payment.ErrDiscountRejected):
			resp := fiber.Map{"error": "discount_rejected", "message": err.Error()}
			if result != nil && result.Quote != nil {
				resp["quote"] = result.Quote
			}
			return c.Status(fiber.StatusUnprocessableEntity).JSON(resp)
		case errors.Is(err, discount.ErrCodeNotFound):
			return jsonError(c, fiber.StatusBadRequest, "discount_not_found", "Unknown discount code")
		case errors.Is(err, payment.ErrGatewayUnavailable):
			return jsonError(c, fiber.StatusServiceUnavailable, "gateway_unavailable", "Payment gateway is unavailable, try again later")
		default:
			log.Printf("[billing] checkout failed for user %d: %v", uc.UserID, err)
			return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Checkout failed")
		}
	}

	resp := fiber.Map{
		"payment":      paymentJSON(result.Payment),
		"token":        result.Token,
		"redirect_url": result.RedirectURL,
	}
	if result.Quote != nil {
		resp["quote"] = result.Quote
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// HandleNotification receives Midtrans HTTP notifications. The signature is
// verified and the status is then re-fetched from the gateway; the payload's
// own transaction_status is never applied directly.
func HandleNotification(c *fiber.Ctx) error {
	var note midtransNotification
	if err := c.BodyParser(&note); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", "Malformed notification body")
	}
	if note.OrderID == "" {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", "Missing order_id")
	}

	serverKey := env.GetEnv("MIDTRANS_SERVER_KEY", "")
	if err := security.VerifyNotificationSignature(note.OrderID, note.StatusCode, note.GrossAmount, note.SignatureKey, serverKey); err != nil {
		log.Printf("[billing] rejected notification for %s: %v", note.OrderID, err)
		return jsonError(c, fiber.StatusForbidden, "invalid_signature", "Signature verification failed")
	}

	result, err := paymentService().Reconcile(c.Context(), note.OrderID)
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrPaymentNotFound):
			// Not ours. Acknowledge so the gateway stops retrying.
			return c.JSON(fiber.Map{"ok": true, "ignored": true})
		case errors.Is(err, payment.ErrGatewayUnavailable):
			// 5xx makes Midtrans redeliver the notification later.
			return jsonError(c, fiber.StatusServiceUnavailable, "gateway_unavailable", "Status verification unavailable")
		default:
			log.Printf("[billing] reconcile failed for %s: %v", note.OrderID, err)
			return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Reconcile failed")
		}
	}

	if result.Applied && result.Payment.Status == models.PaymentStatusCompleted {
		go sendReceipt(result.Payment)
	}

	return c.JSON(fiber.Map{
		"ok":      true,
		"status":  result.Payment.Status,
		"applied": result.Applied,
	})
}

// HandleGetPayment returns one of the caller's payments.
func HandleGetPayment(c *fiber.Ctx) error {
	uc := usercontext.GetUserContext(c)
	if !uc.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Login required")
	}

	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", "Invalid payment id")
	}

	var p models.Payment
	if err := database.GetDB().First(&p, uint(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "Payment not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Lookup failed")
	}
	if p.UserID != uc.UserID && !uc.IsAdmin {
		return jsonError(c, fiber.StatusNotFound, "not_found", "Payment not found")
	}

	return c.JSON(fiber.Map{"payment": paymentJSON(&p)})
}

// HandleListPayments returns the caller's payment history, newest first.
func HandleListPayments(c *fiber.Ctx) error {
	uc := usercontext.GetUserContext(c)
	if !uc.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Login required")
	}

	var payments []models.Payment
	err := database.GetDB().
		Where("user_id = ?", uc.UserID).
		Order("created_at DESC").
		Limit(50).
		Find(&payments).Error
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Lookup failed")
	}

	items := make([]fiber.Map, 0, len(payments))
	for i := range payments {
		items = append(items, paymentJSON(&payments[i]))
	}
	return c.JSON(fiber.Map{"payments": items})
}

// HandleListPlans returns the purchasable plan catalogue.
func HandleListPlans(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"plans": payment.Plans()})
}

func paymentJSON(p *models.Payment) fiber.Map {
	return fiber.Map{
		"id":            p.ID,
		"plan_id":       p.PlanID,
		"billing_cycle": p.BillingCycle,
		"amount":        p.Amount,
		"currency":      p.Currency,
		"status":        p.Status,
		"tracking_id":   p.GatewayTrackingID,
		"discount_code": p.DiscountCode,
		"completed_at":  formatTimePtr(p.CompletedAt),
		"created_at":    p.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func sendReceipt(p *models.Payment) {
	user, err := repository.GetGlobalFactory().GetUserRepository().GetByID(p.UserID)
	if err != nil {
		log.Printf("[billing] receipt skipped, user %d not found: %v", p.UserID, err)
		return
	}
	if err := mail.SendPaymentReceipt(user.Email, user.Name, p.PlanID, p.Amount, p.Currency, p.GatewayTrackingID); err != nil {
		log.Printf("[billing] receipt mail to %s failed: %v", user.Email, err)
	}
}
