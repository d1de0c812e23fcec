package websession

import "strings"

// lookupPath walks data along a dotted key such as "user.profile.name".
// An exact match on the full key wins over traversal, so flat keys that
// contain dots written by Set remain reachable.
func lookupPath(data map[string]any, key string) (any, bool) {
	if data == nil {
		return nil, false
	}
	if v, ok := data[key]; ok {
		return v, true
	}
	head, rest, found := strings.Cut(key, ".")
	if !found {
		return nil, false
	}
	child, ok := data[head]
	if !ok {
		return nil, false
	}
	switch node := child.(type) {
	case map[string]any:
		return lookupPath(node, rest)
	case map[string]string:
		return lookupPath(stringMap(node), rest)
	default:
		return nil, false
	}
}

func stringMap(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
