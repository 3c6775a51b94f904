package preview

// State is where the controller is in its render cycle.
type State int

const (
	Idle          State = iota // Nothing to do
	UpdatePending              // A request is waiting for the worker
	Rendering                  // The worker is running a pass
)

func (s State) String() string {
	switch s {
	case UpdatePending:
		return "update-pending"
	case Rendering:
		return "rendering"
	default:
		return "idle"
	}
}

// Mode is the quality of the next pass.
type Mode int

const (
	Full  Mode = iota // Shaded and depth tested
	Quick             // Wireframe outline only
)

func (m Mode) String() string {
	if m == Quick {
		return "quick"
	}
	return "full"
}

// DragMode selects what a pointer drag does to the view.
type DragMode int

const (
	DragRotate DragMode = iota
	DragPan
	DragZoom
)

func (m DragMode) String() string {
	switch m {
	case DragPan:
		return "pan"
	case DragZoom:
		return "zoom"
	default:
		return "rotate"
	}
}

// ParseDragMode maps a name from DragMode.String back to the mode.
func ParseDragMode(s string) (DragMode, bool) {
	switch s {
	case "rotate", "":
		return DragRotate, true
	case "pan":
		return DragPan, true
	case "zoom":
		return DragZoom, true
	}
	return DragRotate, false
}
