package matching

// RecordActionRequest is the body of POST /matches/{id}/action
type RecordActionRequest struct {
	Action string `json:"action" validate:"required,oneof=connect pass"`
}

// CompatibilityResponse is returned by GET /matches/compatibility/{userId}
type CompatibilityResponse struct {
	UserID             string `json:"userId"`
	CompatibilityScore int    `json:"compatibilityScore"`
}
