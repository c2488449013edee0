package auth

import "golang.org/x/crypto/bcrypt"

// HashPIN hashes a customer PIN with the configured cost.
func HashPIN(pin string, cost int) (string, error) {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(pin), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePIN verifies a PIN against its hashed value.
func ComparePIN(hashed, pin string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(pin))
}
