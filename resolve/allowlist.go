package resolve

import "strings"

// Commands extracted from free text only make it into a plan when every
// segment starts with a known safe verb. Anything else (curl|sh, rm, sudo)
// is dropped, never executed.
var allowedVerbs = map[string]struct{}{
	"git":     {},
	"pip":     {},
	"pip3":    {},
	"uv":      {},
	"python":  {},
	"python3": {},
	"cd":      {},
	"source":  {},
}

// Allowed reports whether a candidate command is safe to include in a plan.
// Compound commands (a && b) are allowed only when every segment is.
func Allowed(command string) bool {
	clean := strings.TrimSpace(command)
	if clean == "" {
		return false
	}
	for _, segment := range strings.Split(clean, "&&") {
		fields := strings.Fields(strings.TrimSpace(segment))
		if len(fields) == 0 {
			return false
		}
		verb := fields[0]
		if _, ok := allowedVerbs[verb]; !ok {
			return false
		}
	}
	return true
}
