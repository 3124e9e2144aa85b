package phoneverify

import (
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// E164Parser parses with libphonenumber metadata. Numbers without a leading
// + are read in DefaultRegion; with no region they must be international.
type E164Parser struct {
	DefaultRegion string
}

func (p E164Parser) Parse(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrPhoneRequired
	}

	region := strings.ToUpper(p.DefaultRegion)
	num, err := phonenumbers.Parse(raw, region)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPhoneInvalid, err)
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}
