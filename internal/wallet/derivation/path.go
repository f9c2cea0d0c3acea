package derivation

import (
	"math/big"
	"regexp"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/pkg/errors"
)

const (
	// DefaultPath is the BIP44 Ethereum path used when no template is configured.
	// Without an index marker the last segment is offset by the account index.
	DefaultPath = "m/44'/60'/0'/0/0"

	// LedgerLivePath enumerates accounts on the third component, as Ledger Live does.
	LedgerLivePath = "m/44'/60'/x'/0/0"

	// LegacyLedgerPath is the four component path of the first Ledger Ethereum apps.
	LegacyLedgerPath = "m/44'/60'/0'/0"

	indexMarker = "x"
)

// ErrStaticTemplate is returned when a template has neither an index marker
// nor a trailing numeric segment, so every index would map to the same path.
var ErrStaticTemplate = errors.New("derivation path template does not vary with the account index")

var (
	additiveMarker = regexp.MustCompile(`/x\s*\+\s*(\d+)`)
	bareMarker     = regexp.MustCompile(`/x`)
	lastSegment    = regexp.MustCompile(`/(\d+)([^\d/]?)$`)
)

// PathFromIndex renders the derivation path for the account at index.
//
// Templates containing the marker "x" have every "/x + n" segment replaced by
// "/<index+n>" first, then every remaining "/x" by "/<index>". Templates without
// a marker get the index added to their last numeric segment, keeping a single
// trailing suffix such as the hardening quote. Templates matching neither form
// are returned unchanged.
func PathFromIndex(template string, index int) string {
	if strings.Contains(template, indexMarker) {
		path := additiveMarker.ReplaceAllStringFunc(template, func(match string) string {
			n := additiveMarker.FindStringSubmatch(match)[1]
			return "/" + addIndex(n, index)
		})

		return bareMarker.ReplaceAllString(path, "/"+strconv.Itoa(index))
	}

	loc := lastSegment.FindStringSubmatchIndex(template)
	if loc == nil {
		return template
	}

	digits := template[loc[2]:loc[3]]
	suffix := template[loc[4]:loc[5]]

	return template[:loc[0]] + "/" + addIndex(digits, index) + suffix
}

// addIndex adds index to the decimal string n without overflowing.
func addIndex(n string, index int) string {
	//nolint:mnd // decimal
	value, ok := new(big.Int).SetString(n, 10)
	if !ok {
		return n
	}

	return value.Add(value, big.NewInt(int64(index))).String()
}

// ValidateTemplate checks that template yields distinct, parseable paths per index.
func ValidateTemplate(template string) error {
	if strings.TrimSpace(template) == "" {
		return errors.New("derivation path template is empty")
	}

	if !strings.Contains(template, indexMarker) && !lastSegment.MatchString(template) {
		return errors.Wrapf(ErrStaticTemplate, "template %q", template)
	}

	if _, err := Parse(PathFromIndex(template, 0)); err != nil {
		return errors.Wrapf(err, "template %q", template)
	}

	return nil
}

// Parse converts a rendered path into its BIP32 components. The "m/" prefix is
// optional, paths without it are treated as absolute like the Ledger apps do.
func Parse(path string) (accounts.DerivationPath, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("empty derivation path")
	}

	if path != "m" && !strings.HasPrefix(path, "m/") {
		path = "m/" + strings.TrimPrefix(path, "/")
	}

	components, err := accounts.ParseDerivationPath(path)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid derivation path %q", path)
	}

	return components, nil
}
