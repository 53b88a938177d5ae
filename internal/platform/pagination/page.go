// Package pagination normalizes limit/offset pairs for list reads.
package pagination

// PageSizeConfig configures page size normalization.
type PageSizeConfig struct {
	Default int
	Max     int
}

// AuditEvents caps audit log reads.
var AuditEvents = PageSizeConfig{Default: 100, Max: 1000}

// ClampPageSize applies defaults and limits for page sizes.
func ClampPageSize(value int, cfg PageSizeConfig) int {
	pageSize := value
	if pageSize <= 0 {
		pageSize = cfg.Default
	}
	if cfg.Max > 0 && pageSize > cfg.Max {
		pageSize = cfg.Max
	}
	if pageSize <= 0 {
		pageSize = 1
	}
	return pageSize
}

// ClampOffset treats negative offsets as the first page.
func ClampOffset(value int) int {
	if value < 0 {
		return 0
	}
	return value
}
