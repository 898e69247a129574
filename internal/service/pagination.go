package service

import "fmt"

// pageOffset переводит параметры from/size в смещение. Индекс страницы
// считается целочисленным делением from на size, поэтому from, не кратный
// size, откатывается к началу своей страницы.
func pageOffset(from, size int) (int, error) {
	if from < 0 {
		return 0, fmt.Errorf("from must not be negative: %w", ErrValidation)
	}
	if size <= 0 {
		return 0, fmt.Errorf("size must be positive: %w", ErrValidation)
	}
	page := 0
	if from > 0 {
		page = from / size
	}
	return page * size, nil
}
