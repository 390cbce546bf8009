package utils

import (
	"fmt"

	"github.com/google/uuid"
)

// GenerateID returns a new unique identifier with a type prefix, e.g. "bid-<uuid>".
func GenerateID(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}
