package handler

const (
	errInternalServer  = "Internal server error"
	errNoWindow        = "No active schedule window"
	errProfileNotFound = "Profile not found"
	errInvalidAction   = "Invalid action type"
)
