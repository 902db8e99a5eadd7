package controllers

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/EdukitaHQ/edukita/internal/pkg/database"
	"github.com/EdukitaHQ/edukita/internal/pkg/discount"
	"github.com/EdukitaHQ/edukita/internal/pkg/payment"
	"github.com/EdukitaHQ/edukita/internal/pkg/referral"
	"github.com/EdukitaHQ/edukita/internal/pkg/subscription"
	"github.com/EdukitaHQ/edukita/internal/pkg/usagemeter"
)

// Session and Locals keys shared between controllers and middleware
const (
	FROM_PROTECTED = "from_protected"
	USER_ID        = "user_id"
	USER_NAME      = "username"
	USER_IS_ADMIN  = "isAdmin"
)

var (
	gatewayOnce   sync.Once
	gatewayClient payment.Gateway
)

// getGateway returns the shared Midtrans client.
func getGateway() payment.Gateway {
	gatewayOnce.Do(func() {
		gatewayClient = payment.NewMidtransGatewayFromEnv()
	})
	return gatewayClient
}

func paymentService() *payment.Service {
	return payment.NewServiceFromDB(database.GetDB(), getGateway(), subscription.NewRedisPlanCache())
}

func subscriptionManager() *subscription.Manager {
	return subscription.NewManagerFromDB(database.GetDB(), subscription.NewRedisPlanCache())
}

func usageMeter() *usagemeter.Meter {
	return usagemeter.NewMeterFromDB(database.GetDB(), usagemeter.NewRedisMirror())
}

func referralEngine() *referral.Engine {
	return referral.NewEngineFromDB(database.GetDB(), subscriptionManager())
}

func discountEngine() *discount.Engine {
	return discount.NewEngineFromDB(database.GetDB())
}

func jsonError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": code, "message": message})
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
