package worker

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	pinMin = 1000
	pinMax = 9999
	// pinAttempts bounds the uniqueness retry; 9000 PINs exist in total.
	pinAttempts = 50
)

// RandomPIN returns a uniformly random PIN in 1000..9999.
func RandomPIN() string {
	n, err := rand.Int(rand.Reader, big.NewInt(pinMax-pinMin+1))
	if err != nil {
		panic(fmt.Sprintf("reading random source: %v", err))
	}
	return fmt.Sprintf("%04d", n.Int64()+pinMin)
}

// ValidPIN reports whether pin is exactly four ASCII digits.
func ValidPIN(pin string) bool {
	if len(pin) != 4 {
		return false
	}
	for i := 0; i < len(pin); i++ {
		if pin[i] < '0' || pin[i] > '9' {
			return false
		}
	}
	return true
}
