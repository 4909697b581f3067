package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractUserIDFromAddress(t *testing.T) {
	tests := []struct {
		address string
		want    string
		wantErr bool
	}{
		{address: "radar+u123@velora.app", want: "u123"},
		{address: "u123+radar@velora.app", want: "u123"},
		{address: "RADAR+u_1-2@velora.app", want: "u_1-2"},
		{address: "Velora Radar <radar+abc@velora.app>", want: "abc"},
		{address: "radar@velora.app", wantErr: true},
		{address: "other+u123@velora.app", wantErr: true},
		{address: "radar+u1+x@velora.app", wantErr: true},
		{address: "radar+@velora.app", wantErr: true},
		{address: "radar+bad.id@velora.app", wantErr: true},
		{address: "not-an-address", wantErr: true},
		{address: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			got, err := ExtractUserIDFromAddress(tt.address, "radar")
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnidentifiedSender)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
