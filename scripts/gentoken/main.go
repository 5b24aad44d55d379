// Generates a relay JWT for local testing.
//
// Usage:
//
//	go run ./scripts/gentoken operator "Shop Admin"
//	go run ./scripts/gentoken visitor "Alex" cust-42
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"codeberg.org/motorline/relay/internal/auth"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found")
	}

	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./scripts/gentoken <visitor|operator> [display_name] [user_id]")
		os.Exit(1)
	}

	role := os.Args[1]
	if role != auth.RoleVisitor && role != auth.RoleOperator {
		log.Fatalf("unknown role %q, want visitor or operator", role)
	}

	displayName := ""
	if len(os.Args) > 2 {
		displayName = os.Args[2]
	}

	userID := ""
	if len(os.Args) > 3 {
		userID = os.Args[3]
	} else if role == auth.RoleOperator {
		userID = "op-" + uuid.NewString()[:8]
	}

	token, err := auth.GenerateJWT(userID, displayName, role)
	if err != nil {
		log.Fatalf("Failed to generate JWT: %v", err)
	}

	fmt.Printf("\n🔑 %s token:\n%s\n\n", role, token)

	if role == auth.RoleOperator {
		fmt.Printf("Export it for the console:\nexport RELAY_OPERATOR_TOKEN=\"%s\"\n", token)
	} else {
		fmt.Printf("Export it for a test visitor:\nexport RELAY_VISITOR_TOKEN=\"%s\"\n", token)
	}
}
