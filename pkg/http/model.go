package http

// APIResponse is the envelope every JSON endpoint writes. Status mirrors the
// semantic result; the transport status stays 200.
type APIResponse struct {
	Status  int         `json:"status" example:"200"`
	Message string      `json:"message" example:"OK"`
	Data    interface{} `json:"data,omitempty"`
}

// ValidationError describes one rejected query or path parameter.
type ValidationError struct {
	Code    string                 `json:"code,omitempty" example:"ERR_ONEOF"`
	Field   string                 `json:"field,omitempty" example:"TF"`
	Message string                 `json:"message,omitempty" example:"TF must be one of: M15, H1"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// ListData wraps filtered rows with their count.
type ListData struct {
	Rows  interface{} `json:"rows"`
	Total int64       `json:"total"`
}
