package agent

import (
	"context"
	"strings"
)

// MockClient provides canned model responses for testing. Responses are
// selected by system prompt role, the same way the gateway routes by model.
type MockClient struct {
	DraftResponse  string
	VerifyResponse string
	RepairResponse string
	Err            error

	Calls []string
}

// NewMockClient creates a mock with a minimal valid scene body.
func NewMockClient() *MockClient {
	body := `camera { location <0, 2, -5> look_at <0, 1, 0> }

light_source { <10, 10, -10> color White }

sphere {
    <0, 1, 0>, 1
    texture { pigment { color Red } finish { specular 0.4 } }
}`
	return &MockClient{
		DraftResponse:  body,
		VerifyResponse: body,
		RepairResponse: body,
	}
}

// Chat returns the canned response for the role implied by the system prompt.
func (m *MockClient) Chat(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	switch {
	case strings.Contains(systemPrompt, "Debugger"):
		m.Calls = append(m.Calls, "repair")
		return m.RepairResponse, nil
	case strings.Contains(systemPrompt, "Verifier"):
		m.Calls = append(m.Calls, "verify")
		return m.VerifyResponse, nil
	default:
		m.Calls = append(m.Calls, "draft")
		return m.DraftResponse, nil
	}
}
