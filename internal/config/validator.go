// internal/config/validator.go
//
// Thin wrapper around go-playground/validator.
//
// Context
// -------
// `internal/config/loader.go` calls `validateStruct` immediately after it
// unmarshals the merged Koanf tree into a `Config` instance.  Any tag
// mismatch or validation error aborts startup, ensuring the binary never
// runs with partial, malformed, or missing configuration.
//
// Field rules live on the struct tags in model.go.  Cross-field rules are
// registered here as struct-level validations:
//
//   • production refuses to boot without `trigger.secret`.
//   • `database.max_idle_conns` may not exceed `database.max_open_conns`.
//
// Notes
// -----
//   • Oxford commas, two spaces after periods.

package config

import "github.com/go-playground/validator/v10"

//
// validator instance (package-level singleton)
//

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New()
	val.RegisterStructValidation(func(sl validator.StructLevel) {
		c := sl.Current().Interface().(Config)
		if c.App.Production() && c.Trigger.Secret == "" {
			sl.ReportError(c.Trigger.Secret, "Trigger.Secret", "Secret", "required_in_production", "")
		}
		if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
			sl.ReportError(c.Database.MaxIdleConns, "Database.MaxIdleConns", "MaxIdleConns", "ltefield", "MaxOpenConns")
		}
	}, Config{})
	return val
}

//
// public API
//

// validateStruct returns the validation errors, or nil on success.
func validateStruct(c *Config) error {
	return v.Struct(c)
}
