package dto

// TokenResponse is returned by refresh and signup.
type TokenResponse struct {
	Status      string `json:"status"`
	Role        string `json:"role"`
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
	ExpiresIn   int64  `json:"expiresIn"`
}

// LoginResponse is returned when a provider login completes. Known accounts get an
// access token; unknown identities get a signup ticket and its lifetime instead.
type LoginResponse struct {
	Status      string `json:"status"`
	Role        string `json:"role"`
	AccessToken string `json:"accessToken,omitempty"`
	TokenType   string `json:"tokenType,omitempty"`
	Ticket      string `json:"ticket,omitempty"`
	ExpiresIn   int64  `json:"expiresIn"`
}

// StatusResponse acknowledges requests without a payload.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// CustomerSignupRequest payload for POST /api/signup/customer.
type CustomerSignupRequest struct {
	Ticket      string  `json:"ticket"`
	Name        string  `json:"name"`
	Birth       string  `json:"birth"`
	Gender      string  `json:"gender"`
	PhoneNumber string  `json:"phoneNumber"`
	Email       *string `json:"email,omitempty"`
	PIN         string  `json:"pin"`
}

// OwnerSignupRequest payload for POST /api/signup/owner.
type OwnerSignupRequest struct {
	Ticket      string  `json:"ticket"`
	Name        string  `json:"name"`
	Birth       string  `json:"birth"`
	Gender      string  `json:"gender"`
	PhoneNumber string  `json:"phoneNumber"`
	Email       *string `json:"email,omitempty"`
}

// MeResponse describes the authenticated caller.
type MeResponse struct {
	ID   int64  `json:"id"`
	Role string `json:"role"`
}

// PingResponse answers the role probe endpoints.
type PingResponse struct {
	OK   bool   `json:"ok"`
	Only string `json:"only"`
}
