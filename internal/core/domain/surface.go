package domain

// SurfaceKind identifies one of the login entry points of a terminal.
type SurfaceKind string

const (
	SurfaceFullPage       SurfaceKind = "full_page"
	SurfaceSwitchDialog   SurfaceKind = "switch_dialog"
	SurfaceFloatingWidget SurfaceKind = "floating_widget"
)

// SurfaceView is what a login surface should render right now.
type SurfaceView struct {
	Kind        SurfaceKind `json:"kind"`
	Visible     bool        `json:"visible"`
	Open        bool        `json:"open"`
	Dismissible bool        `json:"dismissible"`
}
