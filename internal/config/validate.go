package config

import (
	"errors"
	"net/url"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var validLogLevels = []any{"trace", "debug", "info", "warn", "error"}

// Validate checks the settings every command needs.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.API),
		validation.Field(&c.RateLimit),
		validation.Field(&c.Token),
		validation.Field(&c.Upload),
		validation.Field(&c.Logging),
	)
}

// ValidateCredentials checks the signing identity. Commands that talk to the
// remote API call it; local commands such as `uploads` do not.
func (c *Config) ValidateCredentials() error {
	return c.Auth.Validate()
}

// Validate implements validation.Validatable.
func (a AuthConfig) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.KeyID, validation.Required.Error("auth.key_id is required")),
		validation.Field(&a.IssuerID, validation.Required.Error("auth.issuer_id is required")),
		validation.Field(&a.PrivateKeyPath,
			validation.When(strings.TrimSpace(a.PrivateKey) == "",
				validation.Required.Error("one of auth.private_key_path or auth.private_key is required"))),
	)
}

// Validate implements validation.Validatable.
func (a APIConfig) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.BaseURL, validation.Required, validation.By(absoluteHTTPURL)),
		validation.Field(&a.Timeout, validation.Min(0)),
		validation.Field(&a.MaxAttempts, validation.Required, validation.Min(1)),
		validation.Field(&a.BaseDelay, validation.Min(0)),
		validation.Field(&a.DefaultRetryAfter, validation.Min(0)),
	)
}

// Validate implements validation.Validatable.
func (r RateLimitConfig) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.MaxRequests, validation.Required, validation.Min(1)),
		validation.Field(&r.Window, validation.Required, validation.Min(0)),
	)
}

// Validate implements validation.Validatable.
func (t TokenConfig) Validate() error {
	return validation.ValidateStruct(&t,
		validation.Field(&t.Lifetime, validation.Min(0)),
		validation.Field(&t.RefreshBuffer, validation.Min(0), validation.By(func(any) error {
			if t.Lifetime > 0 && t.RefreshBuffer >= t.Lifetime {
				return errors.New("must be shorter than token.lifetime")
			}
			return nil
		})),
	)
}

// Validate implements validation.Validatable.
func (u UploadConfig) Validate() error {
	return validation.ValidateStruct(&u,
		validation.Field(&u.Timeout, validation.Min(0)),
	)
}

// Validate implements validation.Validatable.
func (l LoggingConfig) Validate() error {
	level := strings.ToLower(strings.TrimSpace(l.Level))
	return validation.Validate(level, validation.In(validLogLevels...).Error("logging.level must be one of trace, debug, info, warn, error"))
}

func absoluteHTTPURL(value any) error {
	raw, _ := value.(string)
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return errors.New("must be a valid URL")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New("must use http or https")
	}
	if parsed.Host == "" {
		return errors.New("must be an absolute URL")
	}
	return nil
}
