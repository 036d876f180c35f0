package forward

// Identity holds an organism's stable id.
type Identity struct {
	ID int
}

// Reserve is the organism's energy reserve.
type Reserve struct {
	Value int
}

// Choice is the patch chosen at the current timestep.
type Choice struct {
	Patch int
}
