package validator

import "testing"

type sample struct {
	ConversationID string   `json:"conversationId" validate:"required,uuid"`
	Content        string   `json:"content" validate:"max=10"`
	Kind           string   `json:"messageType" validate:"omitempty,oneof=text image"`
	Participants   []string `json:"participants" validate:"min=1,dive,uuid"`
}

func TestStruct(t *testing.T) {
	tests := []struct {
		name   string
		in     sample
		fields []string
	}{
		{
			name: "valid",
			in: sample{
				ConversationID: "8d3c7f1e-5a4b-4c3d-9e2f-1a2b3c4d5e6f",
				Participants:   []string{"8d3c7f1e-5a4b-4c3d-9e2f-1a2b3c4d5e6f"},
			},
		},
		{
			name: "uppercase ids",
			in: sample{
				ConversationID: "8D3C7F1E-5A4B-4C3D-9E2F-1A2B3C4D5E6F",
				Participants:   []string{"8D3C7F1E-5a4b-4c3d-9e2f-1a2b3c4d5e6f"},
			},
		},
		{
			name: "non-canonical ids",
			in: sample{
				ConversationID: "{8d3c7f1e-5a4b-4c3d-9e2f-1a2b3c4d5e6f}",
				Participants:   []string{"8d3c7f1e5a4b4c3d9e2f1a2b3c4d5e6f"},
			},
			fields: []string{"conversationId", "participants[0]"},
		},
		{
			name:   "missing id and participants",
			in:     sample{},
			fields: []string{"conversationId", "participants"},
		},
		{
			name: "bad kind and long content",
			in: sample{
				ConversationID: "8d3c7f1e-5a4b-4c3d-9e2f-1a2b3c4d5e6f",
				Content:        "much too long content",
				Kind:           "sticker",
				Participants:   []string{"nope"},
			},
			fields: []string{"content", "messageType", "participants[0]"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Struct(tt.in)
			if len(errs) != len(tt.fields) {
				t.Fatalf("got %d errors (%v), want %d", len(errs), errs, len(tt.fields))
			}
			for _, f := range tt.fields {
				if _, ok := errs[f]; !ok {
					t.Errorf("missing error for %q in %v", f, errs)
				}
			}
		})
	}
}
