package db

import (
	"context"
	"strings"
	"testing"
)

func TestSearchPath(t *testing.T) {
	tests := []struct {
		schema string
		want   string
	}{
		{"public", "public"},
		{"pats", "pats, public"},
	}
	for _, tt := range tests {
		if got := searchPath(tt.schema); got != tt.want {
			t.Errorf("searchPath(%q) = %q, want %q", tt.schema, got, tt.want)
		}
	}
}

func TestNewPool_InvalidSchema(t *testing.T) {
	_, err := NewPool(context.Background(), "postgres://u:p@localhost:5432/pats", PoolOptions{Schema: "pats; DROP"})
	if err == nil {
		t.Fatal("expected error for invalid schema")
	}
	if !strings.Contains(err.Error(), "invalid schema name") {
		t.Errorf("unexpected error: %v", err)
	}
}
