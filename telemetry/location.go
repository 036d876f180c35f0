package telemetry

// Location is one organism's position in state space at one timestep.
// State is the reserve at the start of the step, Patch the patch chosen
// for it, and Alive whether the organism survived the step.
type Location struct {
	T     int  `csv:"t"`
	ID    int  `csv:"id"`
	State int  `csv:"state"`
	Patch int  `csv:"patch"`
	Alive bool `csv:"alive"`
}
