package handler

import (
	"net/http"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// RequestValidator plugs go-playground/validator into echo so handlers can
// call c.Validate on bound request bodies.
type RequestValidator struct {
	v *validatorv10.Validate
}

// NewRequestValidator returns the validator installed on the echo instance.
func NewRequestValidator() *RequestValidator {
	return &RequestValidator{v: validatorv10.New()}
}

// Validate implements echo.Validator.
func (rv *RequestValidator) Validate(i interface{}) error {
	if err := rv.v.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// bindAndValidate binds the body into dst and validates it.  The returned
// message is suitable for the {"error": ...} response body.
func bindAndValidate(c echo.Context, dst interface{}) (string, bool) {
	if err := c.Bind(dst); err != nil {
		return "invalid request body", false
	}
	if err := c.Validate(dst); err != nil {
		return "invalid request body", false
	}
	return "", true
}
