package text

import (
	"context"
	"testing"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
		want    string
		wantErr bool
	}{
		{"plain", []byte("Hello world"), "Hello world", false},
		{"bom stripped", []byte("\xef\xbb\xbf# Title"), "# Title", false},
		{"nul heavy", []byte("ab\x00\x00\x00cd"), "", true},
		{"invalid utf8", []byte{0xff, 0xfe, 0xfd, 0xfc, 'a'}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewExtractor().Extract(context.Background(), tt.content)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("expected nil error, got %v", err)
			}
			if got.Text != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got.Text)
			}
		})
	}
}
