package httpapi

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
)

// AppConfig is the Fiber configuration the handlers in this package rely on.
// Immutable is required: handlers pass request strings to the Hub and the
// favorites store, which keep them after the request ends.
func AppConfig(name string, writeTimeout time.Duration) fiber.Config {
	return fiber.Config{
		AppName:               name,
		DisableStartupMessage: true,
		Immutable:             true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          writeTimeout,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ErrorHandler:          ErrorHandler,
	}
}
