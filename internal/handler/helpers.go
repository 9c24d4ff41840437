package handler

import (
	"errors"
	"io"
	"reflect"
	"strings"

	"invoiceflow/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func init() {
	// Register decimal.Decimal as a numeric type so that validator tags like
	// gte=0 work without panicking ("Bad field type decimal.Decimal").
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	// report fields under their JSON names
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// bindAndValidate binds the JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if binding or validation
// fails; the caller should return immediately. An empty body is accepted
// when optional is set.
func bindAndValidate(c *gin.Context, req interface{}, optional bool) bool {
	if !bindJSON(c, req, optional) {
		return false
	}
	return validateStruct(c, req)
}

// bindJSON only decodes the body. Used where field checks must wait for a
// state check in the service.
func bindJSON(c *gin.Context, req interface{}, optional bool) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		if !(optional && errors.Is(err, io.EOF)) {
			respondError(c, apierror.Validation("VALIDATION_ERROR", "Invalid JSON body"))
			return false
		}
	}
	return true
}

func validateStruct(c *gin.Context, req interface{}) bool {
	err := validate.Struct(req)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		respondError(c, apierror.Validation("VALIDATION_ERROR", "Validation failed"))
		return false
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		// strip the root struct name: CreateInvoiceRequest.items[0].unit → items[0].unit
		ns := fe.Namespace()
		if i := strings.IndexByte(ns, '.'); i >= 0 {
			ns = ns[i+1:]
		}
		fields[ns] = fe.Tag()
	}
	respondError(c, apierror.InvalidFields(fields))
	return false
}

// paramID parses a UUID path parameter. Malformed ids are reported as
// not found, like ids that do not exist.
func paramID(c *gin.Context, name, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		respondError(c, apierror.NotFound(what+" not found"))
		return uuid.Nil, false
	}
	return id, true
}

// respondError hands err to middleware.ErrorHandler, which renders it.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
