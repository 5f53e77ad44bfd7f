package config

import (
	"fmt"
	"slices"

	"github.com/go-playground/validator/v10"

	"github.com/marcuoli/go-nameresolve/pkg/nameresolve"
	"github.com/marcuoli/go-nameresolve/pkg/nameresolve/wins"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the struct tags of cfg and the settings that need more
// than a tag: WINS server syntax and the position of "NULL" in the order.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return err
	}

	if _, err := wins.ParseServers(cfg.WINS.Servers); err != nil {
		return fmt.Errorf("wins.servers: %w", err)
	}

	if slices.Contains(cfg.Resolve.Order, nameresolve.OrderDisabled) && len(cfg.Resolve.Order) > 1 {
		return fmt.Errorf("resolve.order: %q must be the only entry", nameresolve.OrderDisabled)
	}
	return nil
}
