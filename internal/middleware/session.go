package middleware

import (
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	SessionCookieName  = "portfel.sid"
	SessionRedisPrefix = "session:"
)

// Session resolves the session user from Redis. Sessions are created by the identity service;
// this middleware only reads them and never writes back.
func Session(rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(userLocal, nil)
		sessionID := sessionIDFromCookie(c.Cookies(SessionCookieName))
		if sessionID == "" || rdb == nil {
			return c.Next()
		}

		b, err := rdb.Get(c.UserContext(), SessionRedisPrefix+sessionID).Bytes()
		if err != nil {
			if err != redis.Nil {
				log.Warn().Err(err).Msg("session lookup failed")
			}
			return c.Next()
		}
		var data map[string]interface{}
		if err := json.Unmarshal(b, &data); err != nil {
			log.Warn().Err(err).Str("session_id", sessionID).Msg("malformed session")
			return c.Next()
		}
		if u, ok := data["user"].(map[string]interface{}); ok {
			c.Locals(userLocal, u)
		}
		return c.Next()
	}
}

// Signed cookies look like "s:<id>.<signature>"; only the id is used as the Redis key.
func sessionIDFromCookie(v string) string {
	if strings.HasPrefix(v, "s:") {
		v = strings.SplitN(v[2:], ".", 2)[0]
	}
	return strings.TrimSpace(v)
}
