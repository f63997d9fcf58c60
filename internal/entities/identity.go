package entities

import "time"

// Identity is the signed-in user as reported by the identity service.
// Values are never mutated after being handed out; a change produces a new value.
type Identity struct {
	UID          string     `json:"uid"`
	Email        string     `json:"email"`
	DisplayName  string     `json:"display_name,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	LastSignInAt *time.Time `json:"last_sign_in_at,omitempty"`
}

// Clone returns a copy that shares no memory with i.
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	c := *i
	if i.LastSignInAt != nil {
		t := *i.LastSignInAt
		c.LastSignInAt = &t
	}
	return &c
}

// Account is the identity backend's stored credential record.
type Account struct {
	UID          string     `gorm:"primaryKey;size:36" json:"uid"`
	Email        string     `gorm:"uniqueIndex;size:255" json:"email"` // Always lower-cased
	DisplayName  string     `gorm:"size:255" json:"display_name"`
	PasswordHash string     `gorm:"size:255" json:"-"`
	LastSignInAt *time.Time `json:"last_sign_in_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (Account) TableName() string {
	return "accounts"
}

// Identity projects the account onto the public identity value.
func (a *Account) Identity() *Identity {
	id := &Identity{
		UID:         a.UID,
		Email:       a.Email,
		DisplayName: a.DisplayName,
		CreatedAt:   a.CreatedAt,
	}
	if a.LastSignInAt != nil {
		t := *a.LastSignInAt
		id.LastSignInAt = &t
	}
	return id
}

// SignIn persists which account a client is signed in as, so the state
// survives a restart of the process.
type SignIn struct {
	ClientID  string    `gorm:"primaryKey;size:64" json:"client_id"`
	UID       string    `gorm:"index;size:36" json:"uid"`
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

func (SignIn) TableName() string {
	return "sign_ins"
}
