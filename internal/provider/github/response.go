package github

import "net/http"

const ackMessage = "Webhook processed successfully"

// Response is the reply to a webhook delivery.
type Response struct {
	StatusCode int    `json:"-"`
	Success    *bool  `json:"success,omitempty"`
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
}

// AckResponse acknowledges a delivery that did not cause any processing.
func AckResponse() *Response {
	return &Response{
		StatusCode: http.StatusOK,
		Message:    ackMessage,
	}
}

func SuccessResponse(msg string) *Response {
	success := true
	return &Response{
		StatusCode: http.StatusOK,
		Success:    &success,
		Message:    msg,
	}
}

func FailureResponse(statusCode int, errMsg string) *Response {
	success := false
	return &Response{
		StatusCode: statusCode,
		Success:    &success,
		Error:      errMsg,
	}
}
