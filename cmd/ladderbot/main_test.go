package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModeFromArgs(t *testing.T) {
	tests := []struct {
		args    []string
		want    string
		wantErr bool
	}{
		{args: nil, want: ""},
		{args: []string{"sim"}, want: "sim"},
		{args: []string{"LIVE"}, want: "live"},
		{args: []string{"auto"}, wantErr: true},
		{args: []string{"sim", "live"}, wantErr: true},
	}

	for _, tt := range tests {
		got, err := modeFromArgs(tt.args)
		if tt.wantErr {
			assert.Error(t, err, "args %v", tt.args)
			continue
		}
		assert.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}
