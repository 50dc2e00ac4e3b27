package broker

import (
	"regexp"
	"strconv"
	"time"

	"github.com/uniedit/mediaupload/internal/utils/random"
)

var unsafeKeyChars = regexp.MustCompile(`[^\w.\-]`)

// SanitizeFileName replaces every character outside [A-Za-z0-9_.-] with "_".
func SanitizeFileName(name string) string {
	return unsafeKeyChars.ReplaceAllString(name, "_")
}

// KeyGenerator assigns storage keys of the form
// "<unix-millis>-<sanitized name>", optionally with a random hex suffix
// inserted before the name to keep same-millisecond uploads apart.
type KeyGenerator struct {
	now          func() time.Time
	randomSuffix bool
}

// NewKeyGenerator creates a key generator.
func NewKeyGenerator(randomSuffix bool) *KeyGenerator {
	return &KeyGenerator{now: time.Now, randomSuffix: randomSuffix}
}

// Generate returns a new key for fileName.
func (g *KeyGenerator) Generate(fileName string) (string, error) {
	prefix := strconv.FormatInt(g.now().UnixMilli(), 10)
	if g.randomSuffix {
		suffix, err := random.Hex(4)
		if err != nil {
			return "", err
		}
		prefix += "-" + suffix
	}
	return prefix + "-" + SanitizeFileName(fileName), nil
}
