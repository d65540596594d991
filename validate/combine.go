package validate

// Merge flattens lists into one, keeping their order.
func Merge(lists ...Errors) Errors {
	var n int
	for _, l := range lists {
		n += len(l)
	}
	out := make(Errors, 0, n)
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

// If returns the merged lists when cond holds, and nothing otherwise.
//
// To guard on the outcome of another rule, pass Passed(rule(...)) rather
// than the rule's result.
func If(cond bool, lists ...Errors) Errors {
	if !cond {
		return nil
	}
	return Merge(lists...)
}

// Passed reports whether a rule produced no errors.
func Passed(errs Errors) bool {
	return len(errs) == 0
}
