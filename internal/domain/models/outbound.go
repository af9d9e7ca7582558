package models

// OutboundMessageRequest is a text notification pushed to a WhatsApp number, either by an
// operator through the API or by the alert sweep.
type OutboundMessageRequest struct {
	To         string `json:"to" binding:"required"`
	Message    string `json:"message" binding:"required"`
	PreviewURL bool   `json:"preview_url"`
}
