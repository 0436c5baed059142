package domain

// Fuses are permission bits burned on a wrapped name. Once burned a fuse can
// not be cleared while the name is wrapped.
type Fuses uint32

const (
	CanDoEverything       Fuses = 0
	CannotUnwrap          Fuses = 1
	CannotBurnFuses       Fuses = 2
	CannotTransfer        Fuses = 4
	CannotSetResolver     Fuses = 8
	CannotSetTTL          Fuses = 16
	CannotCreateSubdomain Fuses = 32
	ParentCannotControl   Fuses = 1 << 16
	IsDotEth              Fuses = 1 << 17
	CanExtendExpiry       Fuses = 1 << 18
)

// Has reports whether every bit of f is burned.
func (f Fuses) Has(bits Fuses) bool {
	return f&bits == bits
}

// OwnerControlled returns the low 16 bits the owner may burn with setFuses.
func (f Fuses) OwnerControlled() Fuses {
	return f & 0xFFFF
}
