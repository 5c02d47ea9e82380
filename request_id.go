package httpclient

import "github.com/google/uuid"

func generateRequestID() string {
	return "req_" + uuid.NewString()
}
