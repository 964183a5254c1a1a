// Command admin-key prints the bcrypt hash of ADMIN_KEY for use as
// ADMIN_KEY_HASH, so the plain key never has to sit in the server's env.
package main

import (
	"fmt"
	"os"

	"github.com/flickfooty/backend/internal/admin"
	"github.com/flickfooty/backend/internal/logger"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logger.Infof("No .env file found, using environment variables")
	}

	key := os.Getenv("ADMIN_KEY")
	if key == "" {
		logger.Fatalf("ADMIN_KEY is not set")
	}

	hashed, err := admin.HashKey(key)
	if err != nil {
		logger.Fatalf("Failed to hash admin key: %v", err)
	}
	fmt.Printf("ADMIN_KEY_HASH=%s\n", hashed)
}
