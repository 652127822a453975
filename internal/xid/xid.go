package xid

import (
	"fmt"

	"github.com/google/uuid"
)

// New returns a prefixed random identifier, e.g. "audit-3f1c...".
func New(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}
