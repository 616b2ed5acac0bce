package models

// ErrorResponse is the standard JSON body for an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse is the JSON body for a simple status acknowledgement.
type StatusResponse struct {
	Status string `json:"status"`
}
