package security

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
)

// VerifyNotificationSignature checks the signature key carried by a gateway
// payment notification. Midtrans signs notifications with
// sha512(order_id + status_code + gross_amount + server_key).
func VerifyNotificationSignature(orderID, statusCode, grossAmount, signatureKey, serverKey string) error {
	if strings.TrimSpace(serverKey) == "" {
		return errors.New("server key is required for signature verification")
	}
	if strings.TrimSpace(signatureKey) == "" {
		return errors.New("missing notification signature")
	}

	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	expected := hex.EncodeToString(sum[:])
	if subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signatureKey)))) != 1 {
		return errors.New("invalid notification signature")
	}
	return nil
}
