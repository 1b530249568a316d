package slices

// map each element in sli.
//
// Each element indexed `N` of the returned slice is `mapper(sli[N])`.
func Map[T any, R any](sli []T, mapper func(v T) R) []R {
	ret := make([]R, len(sli))
	for nth, v := range sli {
		ret[nth] = mapper(v)
	}
	return ret
}

// find the first element matching predicator.
//
// When no elements match, it returns (zero-value, false).
func First[T any](sli []T, predicator func(v T) bool) (T, bool) {
	for _, v := range sli {
		if predicator(v) {
			return v, true
		}
	}
	return *new(T), false
}

// Filter returns elements matching predicator, keeping order.
func Filter[T any](sli []T, predicator func(v T) bool) []T {
	ret := []T{}
	for _, v := range sli {
		if predicator(v) {
			ret = append(ret, v)
		}
	}
	return ret
}

// Contains tests whether sli has v.
func Contains[T comparable](sli []T, v T) bool {
	_, ok := First(sli, func(e T) bool { return e == v })
	return ok
}
