package rooms

// SendMessageRequest is the body of POST /rooms/{id}/messages
type SendMessageRequest struct {
	Text     string `json:"text" validate:"required_without=MediaURL,max=2000"`
	Type     string `json:"type" validate:"omitempty,oneof=text voice image"`
	MediaURL string `json:"mediaUrl" validate:"omitempty,url"`
	Duration int    `json:"duration" validate:"omitempty,min=1,max=300"`
}

// DecisionRequest is the body of POST /rooms/{id}/decision
type DecisionRequest struct {
	Decision string `json:"decision" validate:"required,oneof=connect pass extend"`
}

// MediaUploadRequest is the body of POST /rooms/{id}/media
type MediaUploadRequest struct {
	Type        string `json:"type" validate:"required,oneof=voice image"`
	ContentType string `json:"contentType" validate:"required"`
}

// MarkResponse reports how many messages changed status
type MarkResponse struct {
	Updated int `json:"updated"`
}
