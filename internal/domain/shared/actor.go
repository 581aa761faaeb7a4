package shared

// Actor is the opaque caller identity supplied by the access-control layer.
// Role is only used to route notifications and to annotate history.
type Actor struct {
	ID   string `json:"id" validate:"required,max=100"`
	Role string `json:"role" validate:"max=50"`
}
