package fulfillment

import "strings"

// negativeMarkers are phrases a warehouse operator uses when the
// requested change could not be made. Anything else in a reply is read
// as confirmation that it was.
var negativeMarkers = []string{
	"can't",
	"cannot",
	"can not",
	"unable",
	"too late",
	"already packed",
	"already picked",
	"already shipped",
	"already sent",
	"already gone",
	"no longer",
	"not possible",
}

// InterpretReply reads a free-text warehouse reply as a yes/no on
// whether the change was applied.
func InterpretReply(reply string) bool {
	lowered := strings.ToLower(reply)
	for _, marker := range negativeMarkers {
		if strings.Contains(lowered, marker) {
			return false
		}
	}
	return true
}
