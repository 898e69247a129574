package models

type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// UserPatch описывает частичное обновление пользователя.
// Поля со значением nil не трогаются.
type UserPatch struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}
