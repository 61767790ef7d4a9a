package audit

import (
	"unicode/utf8"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/utils/v2"
)

const maxUserAgent = 512

// Meta is the network origin of a request.
type Meta struct {
	IPAddress string
	UserAgent string
}

// RequestMeta reads the client address (honoring the app's proxy header
// settings) and user agent. Both are copied out of the request buffer,
// which fasthttp reuses once the handler returns.
func RequestMeta(c fiber.Ctx) Meta {
	return Meta{
		IPAddress: utils.CopyString(c.IP()),
		UserAgent: utils.CopyString(truncateUTF8(c.Get(fiber.HeaderUserAgent), maxUserAgent)),
	}
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
