package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/justsurfingit/job-tracker/internal/models"
	"github.com/justsurfingit/job-tracker/internal/services"
	"go.uber.org/zap"
)

var registerTagNames sync.Once

// useJSONFieldNames makes validator report "company" instead of "Company".
func useJSONFieldNames() {
	registerTagNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				name, _, _ = strings.Cut(f.Tag.Get("form"), ",")
			}
			return name
		})
	})
}

func fieldErrors(field string, messages ...string) gin.H {
	return gin.H{field: messages}
}

// writeError maps service errors to status codes. Anything unrecognised is a 500 and
// gets logged; the client only sees a generic message.
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		if verr.Field == "" {
			c.JSON(http.StatusBadRequest, gin.H{"detail": verr.Message})
		} else {
			c.JSON(http.StatusBadRequest, fieldErrors(verr.Field, verr.Message))
		}
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
	case errors.Is(err, services.ErrConcurrentUpdate):
		c.JSON(http.StatusConflict, gin.H{"detail": err.Error()})
	case errors.Is(err, services.ErrUsernameTaken):
		c.JSON(http.StatusBadRequest, fieldErrors("username", "A user with that username already exists."))
	case errors.Is(err, services.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "No active account found with the given credentials"})
	case errors.Is(err, services.ErrLLMUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": err.Error()})
	default:
		logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error."})
	}
}

// writeBindError renders JSON decoding and binding failures in the same field-keyed
// shape as service validation errors. statusField names the request field that holds
// a status value.
func writeBindError(c *gin.Context, err error, statusField string) {
	var (
		verrs     validator.ValidationErrors
		badStatus *models.InvalidStatusError
		badDate   *models.InvalidDateError
		typeErr   *json.UnmarshalTypeError
		syntaxErr *json.SyntaxError
	)
	switch {
	case errors.As(err, &verrs):
		out := gin.H{}
		for _, fe := range verrs {
			out[fe.Field()] = []string{validationMessage(fe)}
		}
		c.JSON(http.StatusBadRequest, out)
	case errors.As(err, &badStatus):
		c.JSON(http.StatusBadRequest, fieldErrors(statusField, badStatus.Error()))
	case errors.As(err, &badDate):
		c.JSON(http.StatusBadRequest, fieldErrors("applied_at", badDate.Error()))
	case errors.As(err, &typeErr):
		c.JSON(http.StatusBadRequest, fieldErrors(typeErr.Field, "Incorrect type. Expected "+typeErr.Type.String()+"."))
	case errors.As(err, &syntaxErr), errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		c.JSON(http.StatusBadRequest, gin.H{"detail": "JSON parse error - " + err.Error()})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
	}
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "max":
		return "Ensure this field has no more than " + fe.Param() + " characters."
	default:
		return "Invalid value."
	}
}
