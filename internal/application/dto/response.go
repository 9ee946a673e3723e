// Package dto defines the response envelope shared by handlers and middleware.
package dto

// Response is the uniform API envelope: a business code, a human message, and
// the payload. Success uses code 200 regardless of transport status.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// OK wraps a successful payload.
func OK(data interface{}) Response {
	return Response{Code: 200, Message: "ok", Data: data}
}

// Err builds an error envelope from a business code and message.
func Err(code int, message string) Response {
	return Response{Code: code, Message: message}
}
