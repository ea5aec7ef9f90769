package models

// User is an account stored in users.xml.
type User struct {
	ID       string
	Username string
	// Password holds a bcrypt hash. Files written by older builds may still
	// carry plaintext; those are upgraded on the next successful login.
	Password    string
	UserType    UserType
	Email       string
	FullName    string
	CreatedDate int64 // epoch milliseconds
}

// RecordID implements Record.
func (u User) RecordID() string { return u.ID }

func (u User) IsAdmin() bool    { return u.UserType == UserTypeAdmin }
func (u User) IsEmployee() bool { return u.UserType == UserTypeEmployee }
