package model

// User is an authenticated identity with its display attributes.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

// Ref returns the public reference of u.
func (u *User) Ref() UserRef {
	return UserRef{ID: u.ID, Username: u.Username, Avatar: u.Avatar}
}

// UserRef is the public projection of a user embedded in responses.
type UserRef struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}

// RefFor looks id up in users and falls back to a bare reference.
func RefFor(id string, users map[string]*User) UserRef {
	if u, ok := users[id]; ok && u != nil {
		return u.Ref()
	}
	return UserRef{ID: id}
}
