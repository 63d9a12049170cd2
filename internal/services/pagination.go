package services

const maxPageSize = 100

func normalizePage(page, pageSize *int, defaultSize int) int {
	if *page <= 0 {
		*page = 1
	}
	if *pageSize <= 0 {
		*pageSize = defaultSize
	}
	if *pageSize > maxPageSize {
		*pageSize = maxPageSize
	}
	return (*page - 1) * *pageSize
}
