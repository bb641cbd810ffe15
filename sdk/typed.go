package sdk

import (
	"context"
	"encoding/json"
	"fmt"
)

// TypedClient wraps a Client for values of a single Go type T.
// Values are converted from the decoded JSON by re-encoding through
// encoding/json, so T follows the usual json struct tags.
//
// Example:
//
//	type User struct {
//	    ID   int    `json:"id"`
//	    Name string `json:"name"`
//	}
//
//	users := sdk.NewTypedClient[User](client)
//	if err := users.Set(ctx, "user:1", User{ID: 1, Name: "Alice"}); err != nil {
//	    log.Fatal(err)
//	}
//	user, err := users.Get(ctx, "user:1")
type TypedClient[T any] struct {
	client *Client
}

// NewTypedClient creates a new typed client wrapper for type T
func NewTypedClient[T any](client *Client) *TypedClient[T] {
	return &TypedClient[T]{client: client}
}

// Set stores value under key, discarding the echoed value
func (tc *TypedClient[T]) Set(ctx context.Context, key string, value T, opts ...CallOption) error {
	_, err := SetValueAs[T](ctx, tc.client, key, value, opts...)
	return err
}

// Get retrieves the value under key as T
func (tc *TypedClient[T]) Get(ctx context.Context, key string, opts ...CallOption) (T, error) {
	return GetValueAs[T](ctx, tc.client, key, opts...)
}

// GetValueAs retrieves the value under key and converts it to T.
// A value that cannot be represented as T is a RequestFailed error.
//
// Example:
//
//	count, err := sdk.GetValueAs[int](ctx, client, "visits")
func GetValueAs[T any](ctx context.Context, client *Client, key string, opts ...CallOption) (T, error) {
	var zero T

	value, err := client.GetValue(ctx, key, opts...)
	if err != nil {
		return zero, err
	}
	return convertValue[T](value)
}

// SetValueAs stores value under key and converts the echoed value back to T
func SetValueAs[T any](ctx context.Context, client *Client, key string, value T, opts ...CallOption) (T, error) {
	var zero T

	echoed, err := client.SetValue(ctx, key, value, opts...)
	if err != nil {
		return zero, err
	}
	return convertValue[T](echoed)
}

// convertValue re-encodes a decoded JSON value into T
func convertValue[T any](value interface{}) (T, error) {
	var result T

	data, err := json.Marshal(value)
	if err != nil {
		return result, requestFailed(fmt.Errorf("failed to encode value: %w", err))
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, requestFailed(fmt.Errorf("failed to convert value to %T: %w", result, err))
	}
	return result, nil
}
