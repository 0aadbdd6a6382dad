package security

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// DefaultMaxJSONDepth bounds payload nesting when no limit is given.
const DefaultMaxJSONDepth = 32

var (
	ErrJSONTooDeep = errors.New("security: JSON nesting too deep")
	ErrInvalidJSON = errors.New("security: invalid JSON")
)

// CheckJSONDepth walks the tokens of data and fails once objects and arrays
// nest deeper than limit. A limit <= 0 selects DefaultMaxJSONDepth. Empty
// input passes.
func CheckJSONDepth(data []byte, limit int) error {
	if limit <= 0 {
		limit = DefaultMaxJSONDepth
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	depth := 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			if depth > 0 {
				return fmt.Errorf("%w: unexpected end of input", ErrInvalidJSON)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidJSON, err)
		}

		delim, ok := tok.(json.Delim)
		if !ok {
			continue
		}
		switch delim {
		case '{', '[':
			if depth++; depth > limit {
				return fmt.Errorf("%w: more than %d levels", ErrJSONTooDeep, limit)
			}
		default:
			depth--
		}
	}
}
