package ragchat_test

import (
	"strings"
	"testing"

	"github.com/fwojciec/ragchat"
	"github.com/stretchr/testify/assert"
)

func TestRequest_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		req     ragchat.Request
		wantErr string
	}{
		{name: "minimal", req: ragchat.Request{Query: "What is an array?"}},
		{name: "all fields", req: ragchat.Request{Query: "q", TopK: 10, Template: "academic", Language: "vi"}},
		{name: "max length in runes", req: ragchat.Request{Query: strings.Repeat("ữ", ragchat.MaxQueryLength)}},
		{name: "empty", req: ragchat.Request{Query: ""}, wantErr: "query must not be empty"},
		{name: "whitespace", req: ragchat.Request{Query: " \t\n "}, wantErr: "query must not be empty"},
		{name: "too long", req: ragchat.Request{Query: strings.Repeat("a", ragchat.MaxQueryLength+1)}, wantErr: "at most 2000"},
		{name: "negative top_k", req: ragchat.Request{Query: "q", TopK: -1}, wantErr: "top_k"},
		{name: "top_k too large", req: ragchat.Request{Query: "q", TopK: 11}, wantErr: "top_k"},
		{name: "unknown template", req: ragchat.Request{Query: "q", Template: "poetic"}, wantErr: `unknown template "poetic"`},
		{name: "unknown language", req: ragchat.Request{Query: "q", Language: "fr"}, wantErr: `unknown language "fr"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.req.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ragchat.ErrValidation)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
