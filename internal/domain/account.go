package domain

import "time"

// ProviderType identifies an external identity provider.
type ProviderType string

const (
	ProviderKakao ProviderType = "KAKAO"
)

// Gender as captured by the signup forms.
type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
)

// ProviderIdentity is the identity asserted by a completed provider login.
type ProviderIdentity struct {
	ProviderType ProviderType
	ProviderID   string
}

// Account is a locally registered customer or owner.
type Account struct {
	ID           int64
	Role         Role
	ProviderType ProviderType
	ProviderID   string
	Email        *string
	Name         string
	PhoneNumber  string
	Birth        time.Time
	Gender       Gender
	PINHash      string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
