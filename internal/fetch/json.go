package fetch

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
)

// JSON fetches url and decodes the response body into v.
func JSON(ctx context.Context, c *Client, url string, v any) error {
	body, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode json %s: %w", url, err)
	}
	return nil
}
