package explorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/itchyny/gojq"
)

// QueryTimeout bounds how long a single jq filter may run.
const QueryTimeout = 5 * time.Second

// Query runs a jq filter over v and collects every result. v is converted
// to its JSON form first so struct tags decide the field names. The filter
// is stopped after QueryTimeout or when ctx ends.
func Query(ctx context.Context, expr string, v any) ([]any, error) {
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse jq filter %q: %w", expr, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("failed to compile jq filter %q: %w", expr, err)
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal input: %w", err)
	}
	var input any
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, fmt.Errorf("failed to unmarshal input: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, QueryTimeout)
	defer cancel()

	var results []any
	iter := code.RunWithContext(ctx, input)
	for {
		result, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := result.(error); ok {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, fmt.Errorf("jq filter %q did not finish within %s: %w", expr, QueryTimeout, err)
			}
			return nil, fmt.Errorf("jq filter %q failed: %w", expr, err)
		}
		results = append(results, result)
	}
	return results, nil
}
