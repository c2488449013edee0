package domain

// RefreshPayload is stored against an opaque refresh token.
type RefreshPayload struct {
	UserID   int64 `json:"userId"`
	Role     Role  `json:"role"`
	IssuedAt int64 `json:"issuedAt"`
}

// SignupTicketPayload carries provider identity facts for a pending signup.
// It never holds account identifiers.
type SignupTicketPayload struct {
	ProviderType ProviderType `json:"providerType"`
	ProviderID   string       `json:"providerId"`
	Role         Role         `json:"role"`
	IssuedAt     int64        `json:"issuedAt"`
}
