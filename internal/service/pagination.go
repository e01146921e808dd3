package service

// Page 描述分页参数，Normalize 之后 Page 从 1 开始。
type Page struct {
	Page  int
	Limit int
}

// Normalize 修正越界的分页参数。
func (p Page) Normalize(defaultLimit, maxLimit int) Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	return p
}

// Offset 返回查询偏移量。
func (p Page) Offset() int {
	return (p.Page - 1) * p.Limit
}

// TotalPages 根据总数计算页数。
func TotalPages(total int64, limit int) int {
	if limit <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}
