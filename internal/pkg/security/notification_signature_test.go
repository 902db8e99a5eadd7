package security

import (
	"crypto/sha512"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifyNotificationSignature(t *testing.T) {
	serverKey := "SB-Mid-server-test"
	sum := sha512.Sum512([]byte("EDK-1" + "200" + "49000.00" + serverKey))
	valid := hex.EncodeToString(sum[:])

	assert.NoError(t, VerifyNotificationSignature("EDK-1", "200", "49000.00", valid, serverKey))
	assert.Error(t, VerifyNotificationSignature("EDK-1", "200", "49000.00", "deadbeef", serverKey))
	assert.Error(t, VerifyNotificationSignature("EDK-2", "200", "49000.00", valid, serverKey))
	assert.Error(t, VerifyNotificationSignature("EDK-1", "200", "49000.00", "", serverKey))
	assert.Error(t, VerifyNotificationSignature("EDK-1", "200", "49000.00", valid, ""))
}
