//go:build tools

//go:generate go run github.com/DataDog/orchestrion pin -generate

package tools

// Pins orchestrion and the tracer integrations it weaves into
// cmd/server and cmd/worker when built with `orchestrion go build`.
import (
	_ "github.com/DataDog/dd-trace-go/orchestrion/all/v2" // integration
	_ "github.com/DataDog/orchestrion"                    // integration
)
