// internal/pkg/ref/ref.go
package ref

import (
	"crypto/rand"
	"fmt"

	"github.com/oklog/ulid/v2"
)

// New returns a prefixed, sortable, unique reference, e.g. "WD-01J8....".
func New(prefix string) string {
	id := ulid.MustNew(ulid.Now(), rand.Reader)
	return fmt.Sprintf("%s-%s", prefix, id.String())
}

// Withdrawal returns a withdrawal number.
func Withdrawal() string { return New("WD") }

// Trial returns the log reference for a business's free trial. It is
// deterministic so the unique index on the log reference admits at most one
// trial row per business, whatever races the grant. Webhook-driven
// subscription log rows use the provider event id instead.
func Trial(businessID int64) string { return fmt.Sprintf("TRIAL-%d", businessID) }
