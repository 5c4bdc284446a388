package notify

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/oliveagle/jsonpath"
)

var tokenPattern = regexp.MustCompile("{(.*?)}")

// ResolveTemplate substitutes {$.path} tokens in a template with
// values looked up from the notification context by jsonpath.
// Unresolvable tokens render as an empty string rather than failing
// the send.
func ResolveTemplate(template string, contextData map[string]any) string {
	tokens := tokenPattern.FindAllString(template, -1)
	resolved := template
	for _, token := range tokens {
		tmatch := strings.ReplaceAll(token, "{", "")
		tmatch = strings.ReplaceAll(tmatch, "}", "")
		if !strings.HasPrefix(tmatch, "$") {
			continue
		}
		value, err := jsonpath.JsonPathLookup(contextData, tmatch)
		if err != nil {
			resolved = strings.ReplaceAll(resolved, token, "")
			continue
		}
		resolved = strings.ReplaceAll(resolved, token, fmt.Sprintf("%v", value))
	}
	return resolved
}
