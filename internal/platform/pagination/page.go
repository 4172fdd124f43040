// Package pagination normalizes list request paging parameters.
package pagination

// LimitConfig configures limit normalization for list requests.
type LimitConfig struct {
	Default int
	Max     int
}

// ClampLimit applies defaults and caps for list limits.
func ClampLimit(value int, cfg LimitConfig) int {
	limit := value
	if limit <= 0 {
		limit = cfg.Default
	}
	if cfg.Max > 0 && limit > cfg.Max {
		limit = cfg.Max
	}
	if limit <= 0 {
		limit = 1
	}
	return limit
}

// ClampOffset rejects negative offsets.
func ClampOffset(value int) int {
	if value < 0 {
		return 0
	}
	return value
}
