package entities

import "time"

// ProfileTimeLayout renders timestamps the way browsers' Date.toISOString does.
const ProfileTimeLayout = "2006-01-02T15:04:05.000Z"

// UserProfileRecord is the document created for every new account.
type UserProfileRecord struct {
	Name          string        `json:"name"`
	Email         string        `json:"email"`
	CreatedAt     string        `json:"createdAt"`
	HealthProfile HealthProfile `json:"healthProfile"`
}

// HealthProfile starts empty; scalar fields are null until the user fills them in.
type HealthProfile struct {
	Age        *int     `json:"age"`
	Gender     *string  `json:"gender"`
	BloodType  *string  `json:"bloodType"`
	Allergies  []string `json:"allergies"`
	Conditions []string `json:"conditions"`
}

// NewUserProfileRecord builds the initial profile document.
func NewUserProfileRecord(name, email string, now time.Time) UserProfileRecord {
	return UserProfileRecord{
		Name:      name,
		Email:     email,
		CreatedAt: now.UTC().Format(ProfileTimeLayout),
		HealthProfile: HealthProfile{
			Allergies:  []string{},
			Conditions: []string{},
		},
	}
}
