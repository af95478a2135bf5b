// Package identifier produces human-facing account numbers and transaction
// IDs. Account numbers are not unique by construction; the caller is
// responsible for checking existence and regenerating on collision.
package identifier

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AccountNumber derives a number from the first four characters of the
// trimmed, upper-cased holder name (the whole name if shorter) plus a 4-digit
// random suffix. The prefix is cut by runes so multibyte names stay valid
// UTF-8.
func AccountNumber(holderName string) string {
	prefix := []rune(strings.ToUpper(strings.TrimSpace(holderName)))
	if len(prefix) > 4 {
		prefix = prefix[:4]
	}
	return fmt.Sprintf("%s%d", string(prefix), rand.Intn(9000)+1000)
}

// TransactionID returns a date-stamped identifier of the form
// TXN-YYYYMMDD-xxxxxxxxxxxx. The suffix is the first 12 hex characters of a
// random UUID, large enough that a collision retry loop is unnecessary.
func TransactionID() string {
	date := time.Now().UTC().Format("20060102")
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("TXN-%s-%s", date, suffix)
}
