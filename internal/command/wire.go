package command

// Request is the UTF-8 JSON envelope shared by both transports.
type Request struct {
	Type   string         `json:"type"`
	Params map[string]any `json:"params"`
}

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Response is the reliable-transport reply envelope. Exactly one is
// written per request, on the connection that carried the request. The
// lossy transport has no response path.
type Response struct {
	Status  string `json:"status"`
	Result  any    `json:"result,omitempty"`
	Message string `json:"message,omitempty"`
}

// Success wraps a handler result in a success response.
func Success(result any) Response {
	return Response{Status: StatusSuccess, Result: result}
}

// Failure wraps an error message in an error response.
func Failure(message string) Response {
	return Response{Status: StatusError, Message: message}
}
