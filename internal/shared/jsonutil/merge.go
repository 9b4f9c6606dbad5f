package jsonutil

// Merge overlays fragment onto target and returns a new object. Keys present
// in both recurse when both sides are objects; otherwise the fragment value
// replaces the target value wholesale, arrays included. Neither input is
// mutated.
func Merge(target, fragment map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(target)+len(fragment))
	for k, v := range target {
		out[k] = v
	}

	for k, fv := range fragment {
		tv, exists := out[k]
		if !exists {
			out[k] = fv
			continue
		}

		tObj, tIsObj := tv.(map[string]interface{})
		fObj, fIsObj := fv.(map[string]interface{})
		if tIsObj && fIsObj {
			out[k] = Merge(tObj, fObj)
		} else {
			out[k] = fv
		}
	}

	return out
}
