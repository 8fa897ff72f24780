package kb

import (
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const idAlphabet = "0123456789abcdef"

// newRecordID builds an identifier of the form PREFIX-YYYYMMDDHHMMSS-xxxx
// where xxxx is a random hex suffix disambiguating records created within
// the same second.
func newRecordID(prefix string, now time.Time) string {
	suffix, err := gonanoid.Generate(idAlphabet, 4)
	if err != nil {
		suffix = "0000"
	}
	return fmt.Sprintf("%s-%s-%s", prefix, now.Format("20060102150405"), suffix)
}
