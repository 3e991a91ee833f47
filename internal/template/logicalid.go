package template

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// idNamespace seeds the name-based UUIDs behind logical ID suffixes.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("schedstack/logical-id"))

// LogicalID derives a stable CloudFormation logical ID from a construct path:
// the alphanumeric characters of each component followed by an 8-character
// hash of the full path, so renaming a component always changes the ID.
func LogicalID(path ...string) string {
	var human strings.Builder
	for _, component := range path {
		for _, r := range component {
			if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
				human.WriteRune(r)
			}
		}
	}

	sum := uuid.NewSHA1(idNamespace, []byte(strings.Join(path, "/")))
	hash := strings.ToUpper(fmt.Sprintf("%x", sum[:4]))

	// CloudFormation caps logical IDs at 255 characters
	prefix := human.String()
	if limit := 255 - len(hash); len(prefix) > limit {
		prefix = prefix[:limit]
	}
	return prefix + hash
}
