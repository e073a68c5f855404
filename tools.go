//go:build tools
// +build tools

// Package tools tracks code generation tools as module dependencies.
package tools

import (
	_ "go.uber.org/mock/mockgen"
)
