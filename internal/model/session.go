package model

// Session is the client-side authentication state: the bearer token issued by
// the backend and the record of the user it belongs to. The zero value is the
// logged-out session.
type Session struct {
	Token string
	User  *User
}

func (s Session) Empty() bool {
	return s.Token == "" && s.User == nil
}
