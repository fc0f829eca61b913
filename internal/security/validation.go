package security

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Limits applied to JSON-encoded tool arguments (domains, values, args).
const (
	DefaultMaxArgumentSize = 256 << 10 // 256 KiB
	DefaultMaxJSONDepth    = 32
)

// Validation errors.
var (
	ErrArgumentTooLarge = errors.New("argument exceeds maximum size")
	ErrJSONTooDeep      = errors.New("JSON nesting exceeds maximum depth")
	ErrInvalidJSON      = errors.New("invalid JSON")
)

// ValidateArgumentSize checks that data does not exceed limit bytes.
// If limit is <= 0, DefaultMaxArgumentSize is used.
func ValidateArgumentSize(data []byte, limit int) error {
	if limit <= 0 {
		limit = DefaultMaxArgumentSize
	}
	if len(data) > limit {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrArgumentTooLarge, len(data), limit)
	}
	return nil
}

// ValidateJSONDepth checks that the JSON in data does not nest deeper
// than limit levels. If limit is <= 0, DefaultMaxJSONDepth is used.
func ValidateJSONDepth(data []byte, limit int) error {
	if limit <= 0 {
		limit = DefaultMaxJSONDepth
	}
	if len(data) == 0 {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("%w: %w", ErrInvalidJSON, err)
		}

		switch tok {
		case json.Delim('{'), json.Delim('['):
			depth++
			if depth > limit {
				return fmt.Errorf("%w: depth %d (max %d)", ErrJSONTooDeep, depth, limit)
			}
		case json.Delim('}'), json.Delim(']'):
			depth--
		}
	}
}

// ValidateJSONArgument applies the default size and depth limits.
func ValidateJSONArgument(data []byte) error {
	if err := ValidateArgumentSize(data, 0); err != nil {
		return err
	}
	return ValidateJSONDepth(data, 0)
}
