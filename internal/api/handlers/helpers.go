package handlers

import (
	"crypto/rand"
	"math/big"
)

// generateID generates a random ID drawn from charset
func generateID(length int, charset string) string {
	result := make([]byte, length)
	for i := range result {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		result[i] = charset[n.Int64()]
	}
	return string(result)
}

// generateRoomID returns a short numeric code players can read out to a friend
func generateRoomID() string {
	return generateID(roomIDLength, "0123456789")
}
