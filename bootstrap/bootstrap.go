package bootstrap

import (
	"portfel-backend/internal/config"
	"portfel-backend/internal/interfaces/router"
	"portfel-backend/internal/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

// New creates the Fiber app for serverless hosting (the api handler imports this package, not internal).
func New() (*fiber.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger.SetGlobalLogger(logger.New(logger.Config{Level: cfg.LogLevel}))
	app, _, _, err := router.CreateApp(cfg)
	return app, err
}
