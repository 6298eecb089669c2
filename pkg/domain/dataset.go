// Package domain holds what the problem packages share: strict dataset
// decoding and validation.
package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// DecodeDataset strictly decodes a JSON dataset into v and validates it
// against its `validate` struct tags.
func DecodeDataset(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("failed to decode dataset: %w", err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("invalid dataset: %w", describeValidation(err))
	}
	return nil
}

// describeValidation flattens validator field errors into one readable error.
func describeValidation(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// UnknownReferenceError reports a dataset record pointing at a missing record.
type UnknownReferenceError struct {
	Kind  string
	ID    string
	Owner string
}

func (e *UnknownReferenceError) Error() string {
	return fmt.Sprintf("%s references unknown %s %q", e.Owner, e.Kind, e.ID)
}
