package models

import (
	"errors"
	"fmt"
	"strings"
)

// Validation sentinels for annotations.
var (
	ErrMissingURI       = errors.New("uri is required")
	ErrMissingUser      = errors.New("user is required")
	ErrMissingKey       = errors.New("id or tag is required")
	ErrSelfReference    = errors.New("annotation cannot reference itself")
	ErrEmptyReference   = errors.New("reference cannot be empty")
	ErrDuplicateTag     = errors.New("duplicate tag")
	ErrUnknownSelector  = errors.New("unknown selector type")
	ErrInvalidSelection = errors.New("selector end precedes start")
)

// ValidationError represents a single validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (v ValidationError) Error() string {
	if v.Field == "" {
		return v.Message
	}
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

// ValidationErrors aggregates multiple validation failures.
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

// Add records a validation error for a field.
func (v *ValidationErrors) Add(field string, err error) {
	if err == nil {
		return
	}

	var nested *ValidationErrors
	if errors.As(err, &nested) {
		for _, sub := range nested.Errors {
			v.Errors = append(v.Errors, ValidationError{
				Field:   joinField(field, sub.Field),
				Message: sub.Message,
				Cause:   sub.Cause,
			})
		}
		return
	}

	v.Errors = append(v.Errors, ValidationError{
		Field:   field,
		Message: err.Error(),
		Cause:   err,
	})
}

// AddMessage records a validation error with a custom message.
func (v *ValidationErrors) AddMessage(field, message string) {
	if message == "" {
		return
	}
	v.Errors = append(v.Errors, ValidationError{Field: field, Message: message})
}

// Err returns nil if there are no errors, otherwise returns the validation error.
func (v *ValidationErrors) Err() error {
	if v == nil || len(v.Errors) == 0 {
		return nil
	}
	return v
}

// Error implements error.
func (v *ValidationErrors) Error() string {
	if v == nil || len(v.Errors) == 0 {
		return "validation failed"
	}
	if len(v.Errors) == 1 {
		return v.Errors[0].Error()
	}

	var builder strings.Builder
	for i, err := range v.Errors {
		if i > 0 {
			builder.WriteString("; ")
		}
		builder.WriteString(err.Error())
	}

	return builder.String()
}

// Is allows errors.Is to match nested validation errors.
func (v *ValidationErrors) Is(target error) bool {
	if v == nil {
		return false
	}
	for _, err := range v.Errors {
		if err.Cause != nil && errors.Is(err.Cause, target) {
			return true
		}
	}
	return false
}

func joinField(prefix, field string) string {
	switch {
	case prefix == "":
		return field
	case field == "":
		return prefix
	default:
		return prefix + "." + field
	}
}

// Validate checks the annotation for fields every stored annotation needs.
func (a *Annotation) Validate() error {
	v := &ValidationErrors{}
	if a == nil {
		v.AddMessage("", "annotation is nil")
		return v.Err()
	}
	if strings.TrimSpace(a.URI) == "" {
		v.Add("uri", ErrMissingURI)
	}
	if strings.TrimSpace(a.User) == "" {
		v.Add("user", ErrMissingUser)
	}
	if a.Key() == "" {
		v.Add("id", ErrMissingKey)
	}
	for i, ref := range a.References {
		field := fmt.Sprintf("references[%d]", i)
		ref = strings.TrimSpace(ref)
		switch {
		case ref == "":
			v.Add(field, ErrEmptyReference)
		case ref == a.ID || ref == a.Tag:
			v.Add(field, ErrSelfReference)
		}
	}
	seen := make(map[string]struct{}, len(a.Tags))
	for i, tag := range a.Tags {
		key := strings.ToLower(strings.TrimSpace(tag))
		if _, ok := seen[key]; ok {
			v.Add(fmt.Sprintf("tags[%d]", i), ErrDuplicateTag)
			continue
		}
		seen[key] = struct{}{}
	}
	for i, target := range a.Target {
		v.Add(fmt.Sprintf("target[%d]", i), validateTarget(target))
	}
	return v.Err()
}

func validateTarget(t Target) error {
	v := &ValidationErrors{}
	for i, sel := range t.Selectors {
		field := fmt.Sprintf("selector[%d]", i)
		switch sel.Type {
		case SelectorTextQuote, SelectorRange:
		case SelectorTextPosition:
			if sel.End < sel.Start {
				v.Add(field, ErrInvalidSelection)
			}
		default:
			v.Add(field+".type", ErrUnknownSelector)
		}
	}
	return v.Err()
}
