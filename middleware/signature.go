package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"support-router/logger"
)

// SignatureHeader carries the HMAC-SHA256 of the raw body keyed with the app secret.
const SignatureHeader = "X-Hub-Signature-256"

// VerifySignature rejects webhook deliveries whose signature does not
// match. With an empty secret every request passes.
func VerifySignature(appSecret string) fiber.Handler {
	if appSecret == "" {
		logger.Log.Warn("FB_APP_SECRET not set, webhook signatures will not be verified")
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	secret := []byte(appSecret)

	return func(c *fiber.Ctx) error {
		signature := c.Get(SignatureHeader)
		if signature == "" {
			logger.Log.Warn("Webhook delivery without signature", zap.String("ip", c.IP()))
			return c.SendStatus(fiber.StatusUnauthorized)
		}

		if !validSignature(secret, c.Body(), signature) {
			logger.Log.Warn("Webhook signature mismatch", zap.String("ip", c.IP()))
			return c.SendStatus(fiber.StatusForbidden)
		}

		return c.Next()
	}
}

// Sign returns the header value for body. Used by tests and tooling.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func validSignature(secret, body []byte, header string) bool {
	got, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	decoded, err := hex.DecodeString(got)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hmac.Equal(decoded, mac.Sum(nil))
}
