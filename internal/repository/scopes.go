package repository

import "gorm.io/gorm"

// paginate limits a query to one page. A non-positive page size disables paging.
func paginate(page, pageSize int) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if pageSize <= 0 {
			return db
		}
		if page <= 0 {
			page = 1
		}
		return db.Offset((page - 1) * pageSize).Limit(pageSize)
	}
}

// countAndFind counts the filtered rows, then loads the requested page into dest.
func countAndFind(query *gorm.DB, order string, page, pageSize int, dest interface{}) (int64, error) {
	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return 0, err
	}
	if err := query.Order(order).Scopes(paginate(page, pageSize)).Find(dest).Error; err != nil {
		return 0, err
	}
	return total, nil
}
