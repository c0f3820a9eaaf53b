package main

import (
	"errors"
	"testing"

	"github.com/samirrijal/osmqa/internal/core/domain"
)

func TestParseArgs(t *testing.T) {
	tests := []struct {
		args    []string
		mode    domain.AnalysisMode
		classes []int
		wantErr bool
	}{
		{args: []string{"full"}, mode: domain.ModeFull},
		{args: []string{"diff", "10,30"}, mode: domain.ModeDiff, classes: []int{10, 30}},
		{args: []string{"full", " 20 , "}, mode: domain.ModeFull, classes: []int{20}},
		{args: nil, wantErr: true},
		{args: []string{"weekly"}, wantErr: true},
		{args: []string{"full", "ten"}, wantErr: true},
		{args: []string{"full", "10", "extra"}, wantErr: true},
	}
	for _, tt := range tests {
		req, err := parseArgs(tt.args)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseArgs(%v) error = %v, wantErr %v", tt.args, err, tt.wantErr)
			continue
		}
		if tt.wantErr {
			continue
		}
		if req.Mode != tt.mode {
			t.Errorf("parseArgs(%v) mode = %s, want %s", tt.args, req.Mode, tt.mode)
		}
		if len(req.Classes) != len(tt.classes) {
			t.Errorf("parseArgs(%v) classes = %v, want %v", tt.args, req.Classes, tt.classes)
			continue
		}
		for i := range tt.classes {
			if req.Classes[i] != tt.classes[i] {
				t.Errorf("parseArgs(%v) classes = %v, want %v", tt.args, req.Classes, tt.classes)
			}
		}
	}
}

func TestParseArgs_InvalidModeSentinel(t *testing.T) {
	_, err := parseArgs([]string{"hourly"})
	if !errors.Is(err, domain.ErrInvalidMode) {
		t.Errorf("expected ErrInvalidMode, got %v", err)
	}
}
