package risk

// Limits bounds what a single submission may contain. Zero values mean unlimited.
type Limits struct {
	MaxBundleSize   int
	MaxMakingAmount uint64
}

// AllowBundle reports whether a bundle of n transactions fits.
func (l Limits) AllowBundle(n int) bool {
	return n > 0 && (l.MaxBundleSize <= 0 || n <= l.MaxBundleSize)
}

// AllowAmount reports whether an order of makingAmount base units may be fee'd and relayed.
func (l Limits) AllowAmount(makingAmount uint64) bool {
	return l.MaxMakingAmount == 0 || makingAmount <= l.MaxMakingAmount
}
