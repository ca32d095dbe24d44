package cobj

// Resolve returns the entry answering d for cls: a depth-first, preorder
// search over cls's own table and then each base class in declared order.
// The leftmost base wins when several implement d. If no class in the
// hierarchy implements d, d's default entry is returned, so Resolve never
// fails.
//
// Resolve only reads class definitions, which are immutable once compiled,
// and needs no lock.
func Resolve(cls *Class, d *Desc) *Method {
	if m := resolveMI(cls, d); m != nil {
		return m
	}
	return &d.deflt
}

func resolveMI(cls *Class, d *Desc) *Method {
	if cls == nil {
		return nil
	}
	if m := cls.Methods.find(d); m != nil {
		return m
	}
	for _, base := range cls.Bases {
		if m := resolveMI(base, d); m != nil {
			return m
		}
	}
	return nil
}
