package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// BindStrictJSON decodes the body rejecting unknown fields, then runs the
// binding-tag validation gin would have run. Responds 400 itself and returns
// false when the body is bad.

func BindStrictJSON(ctx *gin.Context, out interface{}) bool {
	dec := json.NewDecoder(ctx.Request.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(out); err != nil {
		RespondBadRequest(ctx, bindErrorMessage(err))
		return false
	}

	if err := binding.Validator.ValidateStruct(out); err != nil {
		RespondBadRequest(ctx, bindErrorMessage(err))
		return false
	}

	return true
}

func bindErrorMessage(err error) string {
	// validator errors (struct binding tags)

	var validatorError validator.ValidationErrors

	if errors.As(err, &validatorError) {
		parts := make([]string, 0, len(validatorError))

		for _, fieldError := range validatorError {
			parts = append(parts, fmt.Sprintf("%s %s", strings.ToLower(fieldError.Field()), validationMessage(fieldError.Tag(), fieldError.Param())))
		}
		return "invalid request body: " + strings.Join(parts, "; ")
	}

	// in the event of bad json

	var syntaxError *json.SyntaxError

	if errors.As(err, &syntaxError) {
		return "invalid request body: malformed JSON"
	}

	// in the event of a type mismatch

	var unmatchedTypeError *json.UnmarshalTypeError

	if errors.As(err, &unmatchedTypeError) {
		return fmt.Sprintf("invalid request body: %s must be of type %s", unmatchedTypeError.Field, unmatchedTypeError.Type.String())
	}

	if strings.HasPrefix(err.Error(), "json: unknown field") {
		return "invalid request body: " + err.Error()[len("json: "):]
	}

	return "invalid request body"
}

func validationMessage(rule, param string) string {
	switch rule {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + param
	case "max":
		return "must be at most " + param
	case "oneof":
		return "must be one of " + strings.ReplaceAll(param, " ", ", ")
	default:
		if param != "" {
			return fmt.Sprintf("failed %s validation (%s)", rule, param)
		}
		return "failed " + rule + " validation"
	}
}
