// Package httpx provides helper functions for creating API Gateway proxy responses.
package httpx

import (
	"encoding/json"

	"github.com/kylejryan/course-certificate-generator/internal/api"

	"github.com/aws/aws-lambda-go/events"
)

// JSON creates a JSON HTTP response with the given status code and value.
func JSON(status int, v any) events.APIGatewayProxyResponse {
	b, _ := json.Marshal(v)
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
		Body: string(b),
	}
}

// Error creates a JSON HTTP error response with the given status code and message.
func Error(status int, msg string) events.APIGatewayProxyResponse {
	return JSON(status, api.ErrorResponse{Success: false, Error: msg})
}
