package pool

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/shrek82/datagate/dialect"
)

// Config holds connection and sizing options for a Pool.
type Config struct {
	// Driver is the dialect name: mysql, postgres or sqlite3.
	Driver   string            `yaml:"driver" validate:"required"`
	Host     string            `yaml:"host"`
	Port     int               `yaml:"port" validate:"gte=0,lte=65535"`
	Database string            `yaml:"database"`
	User     string            `yaml:"user"`
	Password string            `yaml:"password"`
	Params   map[string]string `yaml:"params"`

	// MinSize is the number of idle connections the reaper never closes.
	MinSize int `yaml:"min_size" validate:"gt=0"`
	// InitialSize connections are opened on the first Acquire.
	InitialSize int `yaml:"initial_size" validate:"gtefield=MinSize"`
	// MaxSize bounds the number of live connections.
	MaxSize int `yaml:"max_size" validate:"gtefield=InitialSize"`

	// ValidationQuery is run on checkout when ValidateOnCheckout is set.
	ValidationQuery    string `yaml:"validation_query"`
	ValidateOnCheckout bool   `yaml:"validate_on_checkout"`

	// AcquireTimeout bounds how long Acquire waits for a free slot.
	AcquireTimeout time.Duration `yaml:"acquire_timeout" validate:"gt=0"`
	// IdleTimeout closes idle connections above MinSize after this long. Zero disables reaping.
	IdleTimeout time.Duration `yaml:"idle_timeout" validate:"gte=0"`
}

// DefaultConfig returns the default sizing: 5/5/15, SELECT 1 validated on checkout.
func DefaultConfig() Config {
	return Config{
		MinSize:            5,
		InitialSize:        5,
		MaxSize:            15,
		ValidationQuery:    "SELECT 1",
		ValidateOnCheckout: true,
		AcquireTimeout:     5 * time.Second,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks min <= initial <= max, all positive, and that the driver is known.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, ok := dialect.Get(c.Driver); !ok {
		return fmt.Errorf("%w: unknown driver %q", ErrInvalidConfig, c.Driver)
	}
	return nil
}

func (c *Config) connParams() dialect.ConnParams {
	return dialect.ConnParams{
		Host:     c.Host,
		Port:     c.Port,
		Database: c.Database,
		User:     c.User,
		Password: c.Password,
		Params:   c.Params,
	}
}

func (c *Config) validationQuery() string {
	if c.ValidationQuery == "" {
		return "SELECT 1"
	}
	return c.ValidationQuery
}
