package dto

// InvokeRequest is the body of the direct invocation endpoint
type InvokeRequest struct {
	PageID      string             `json:"pageId"`
	SenderID    string             `json:"senderId"`
	MessageText string             `json:"messageText"`
	MessageType string             `json:"messageType,omitempty"`
	Attachments []InvokeAttachment `json:"attachments,omitempty"`
	IsComment   bool               `json:"isComment,omitempty"`
	CommentID   string             `json:"commentId,omitempty"`
	PostID      string             `json:"postId,omitempty"`
	SenderName  string             `json:"senderName,omitempty"`
}

// InvokeAttachment mirrors the Messenger attachment shape
type InvokeAttachment struct {
	Type    string `json:"type"`
	Payload struct {
		URL string `json:"url"`
	} `json:"payload"`
}

// InvokeResponse is returned by the direct invocation endpoint
type InvokeResponse struct {
	Success        bool   `json:"success"`
	Reply          string `json:"reply,omitempty"`
	Provider       string `json:"provider,omitempty"`
	ConversationID int64  `json:"conversationId,omitempty"`
	ProcessingTime int64  `json:"processingTime"`
	Reason         string `json:"reason,omitempty"`
	Error          string `json:"error,omitempty"`
}
