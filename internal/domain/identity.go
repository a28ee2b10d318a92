package domain

// Identity: проверенные клеймы пользователя. Фиксируется один раз при
// аутентификации и не меняется до конца соединения.
type Identity struct {
	UserID   string
	Username string
	Avatar   string
}

func (i Identity) Author() Author {
	return Author{ID: i.UserID, Username: i.Username, Avatar: i.Avatar}
}
