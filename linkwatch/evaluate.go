package linkwatch

// Evaluate recomputes the passive online state immediately using the same
// checks as the event stream.
func Evaluate() (bool, string, error) {
	return recomputeOnline()
}
