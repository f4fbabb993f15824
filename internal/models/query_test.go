package models

import (
	"errors"
	"testing"
)

func TestAskRequest_Validate(t *testing.T) {
	tests := []struct {
		name     string
		req      *AskRequest
		wantErr  bool
		wantText string
	}{
		{"empty question", &AskRequest{Question: ""}, true, ""},
		{"blank question", &AskRequest{Question: "  \n\t"}, true, ""},
		{"valid question", &AskRequest{Question: "How big is Boston?"}, false, "How big is Boston?"},
		{"trims whitespace", &AskRequest{Question: "  Why?  "}, false, "Why?"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrNoQuestion) {
				t.Errorf("Validate() error = %v, want ErrNoQuestion", err)
			}
			if !tt.wantErr && tt.req.Question != tt.wantText {
				t.Errorf("Question = %q, want %q", tt.req.Question, tt.wantText)
			}
		})
	}
}
