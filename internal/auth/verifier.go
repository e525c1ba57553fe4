package auth

import "golang.org/x/crypto/bcrypt"

// Verifier checks a device secret against its stored verifier. The hashing
// scheme lives behind this interface only.
type Verifier interface {
	Hash(secret string) (string, error)
	Verify(secret, stored string) bool
}

type BcryptVerifier struct {
	cost int
}

// NewBcryptVerifier uses bcrypt.DefaultCost when cost is zero.
func NewBcryptVerifier(cost int) BcryptVerifier {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return BcryptVerifier{cost: cost}
}

func (v BcryptVerifier) Hash(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), v.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (v BcryptVerifier) Verify(secret, stored string) bool {
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(secret)) == nil
}
