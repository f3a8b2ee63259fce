package telemetry

// ResolveRaw returns the scalar at the first candidate path that carries one.
func ResolveRaw(tree Tree, paths []string) (interface{}, bool) {
	for _, path := range paths {
		if v, ok := LeafAt(tree, path).Unwrap(); ok {
			return v, true
		}
	}
	return nil, false
}

// Resolve is ResolveRaw formatted for display, NotAvailable when nothing resolves.
func Resolve(tree Tree, paths []string) string {
	v, ok := ResolveRaw(tree, paths)
	if !ok {
		return NotAvailable
	}
	return Format(v)
}

// ResolveOr is Resolve with a caller supplied fallback.
func ResolveOr(tree Tree, paths []string, fallback string) string {
	v, ok := ResolveRaw(tree, paths)
	if !ok {
		return fallback
	}
	return Format(v)
}

// ResolveFloat resolves and parses a numeric field. ok is false when no path
// resolves; err is set when a value resolved but is not numeric.
func ResolveFloat(tree Tree, paths []string) (value float64, ok bool, err error) {
	raw, ok := ResolveRaw(tree, paths)
	if !ok {
		return 0, false, nil
	}
	value, err = ParseFloat(raw)
	return value, true, err
}
