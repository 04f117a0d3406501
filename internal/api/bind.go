package api

import (
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/creasty/defaults"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"compartilar-backend-go/internal/core"
)

var registerOnce sync.Once

// RegisterValidators installs the custom binding tags and reports field names
// by their json or form key. It is safe to call more than once.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, key := range []string{"json", "form"} {
				if tag, ok := fld.Tag.Lookup(key); ok {
					name := strings.SplitN(tag, ",", 2)[0]
					if name == "-" {
						return ""
					}
					if name != "" {
						return name
					}
				}
			}
			return fld.Name
		})
		_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
			_, ok := core.NormalizeUsername(fl.Field().String())
			return ok
		})
		_ = v.RegisterValidation("birthdate", func(fl validator.FieldLevel) bool {
			return core.ValidBirthDate(fl.Field().String(), time.Now())
		})
	})
}

// bindJSON applies struct defaults, then decodes and validates the body.
// It writes a 400 response and returns false on failure.
func bindJSON(c *gin.Context, obj interface{}) bool {
	return bind(c, obj, false)
}

// bindOptionalJSON is bindJSON for endpoints whose body may be empty.
func bindOptionalJSON(c *gin.Context, obj interface{}) bool {
	return bind(c, obj, true)
}

func bind(c *gin.Context, obj interface{}, optional bool) bool {
	if err := defaults.Set(obj); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request received"})
		return false
	}
	err := c.ShouldBindJSON(obj)
	if optional && errors.Is(err, io.EOF) {
		err = binding.Validator.ValidateStruct(obj)
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: bindErrorMessage(err), Details: err.Error()})
		return false
	}
	return true
}

func bindQuery(c *gin.Context, obj interface{}) bool {
	if err := defaults.Set(obj); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request received"})
		return false
	}
	if err := c.ShouldBindQuery(obj); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: bindErrorMessage(err), Details: err.Error()})
		return false
	}
	return true
}
