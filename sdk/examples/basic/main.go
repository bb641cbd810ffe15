package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/birbparty/cooldb/sdk"
)

func main() {
	config := sdk.DefaultConfig().
		WithBaseURL("http://localhost:8080").
		WithTimeout(10 * time.Second).
		WithTransport(sdk.NewRetryTransport(sdk.NewHTTPTransport(nil), sdk.DefaultExponentialBackoff()))

	client, err := sdk.NewClient(config)
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}
	defer client.Close()

	ctx := context.Background()

	fmt.Println("Checking server status...")
	status, err := client.GetStatus(ctx)
	if err != nil {
		log.Printf("Warning: status check failed: %v", err)
		log.Println("Make sure the CoolDB server is running on http://localhost:8080")
	} else {
		fmt.Printf("✓ Server status: %v\n", status)
	}

	// Example 1: Store a simple string
	fmt.Println("\n--- Example 1: Simple String ---")
	if _, err := client.SetValue(ctx, "greeting", "Hello, CoolDB!"); err != nil {
		log.Fatalf("Failed to set value: %v", err)
	}
	greeting, err := client.GetValue(ctx, "greeting")
	if err != nil {
		log.Fatalf("Failed to get value: %v", err)
	}
	fmt.Printf("✓ Retrieved: %v\n", greeting)

	// Example 2: Store a struct
	fmt.Println("\n--- Example 2: Struct ---")
	type User struct {
		ID    int    `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}

	users := sdk.NewTypedClient[User](client)
	if err := users.Set(ctx, "user:1", User{ID: 1, Name: "Alice", Email: "alice@example.com"}); err != nil {
		log.Fatalf("Failed to set user: %v", err)
	}
	user, err := users.Get(ctx, "user:1")
	if err != nil {
		log.Fatalf("Failed to get user: %v", err)
	}
	fmt.Printf("✓ Retrieved user: %+v\n", user)

	// Example 3: Keys with reserved characters
	fmt.Println("\n--- Example 3: Reserved Characters ---")
	if _, err := client.SetValue(ctx, "path/to key", 42); err != nil {
		log.Fatalf("Failed to set value: %v", err)
	}
	n, err := sdk.GetValueAs[int](ctx, client, "path/to key")
	if err != nil {
		log.Fatalf("Failed to get value: %v", err)
	}
	fmt.Printf("✓ Retrieved: %d\n", n)

	// Example 4: Listing keys
	fmt.Println("\n--- Example 4: List Keys ---")
	keys, err := client.ListKeys(ctx)
	if err != nil {
		log.Fatalf("Failed to list keys: %v", err)
	}
	fmt.Printf("✓ %d keys: %v\n", len(keys), keys)

	// Example 5: Handling errors
	fmt.Println("\n--- Example 5: Errors ---")
	if _, err := client.GetValue(ctx, ""); errors.Is(err, sdk.ErrInvalidArgument) {
		fmt.Printf("✓ Empty key rejected locally: %v\n", err)
	}
	if _, err := client.GetValue(ctx, "does-not-exist"); errors.Is(err, sdk.ErrRequestFailed) {
		fmt.Printf("✓ Missing key: %v\n", err)
	}
}
