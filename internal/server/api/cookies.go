package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// accessTokenCookie holds the signed session token. It is httpOnly so the
// token never crosses into page scripts.
const accessTokenCookie = "access_token"

func setAuthCookie(c *fiber.Ctx, token string, validity time.Duration, secure bool) {
	c.Cookie(&fiber.Cookie{
		Name:     accessTokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(validity.Seconds()),
		Expires:  time.Now().Add(validity),
		HTTPOnly: true,
		Secure:   secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func clearAuthCookie(c *fiber.Ctx, secure bool) {
	c.Cookie(&fiber.Cookie{
		Name:     accessTokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
