package handler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leasehold/pkg/domain"
	dErrors "leasehold/pkg/domain-errors"
)

func TestRegisterSubdomainRequestDuration(t *testing.T) {
	owner := "0x00000000000000000000000000000000000000aa"
	parent := domain.Namehash("example.eth")

	tests := []struct {
		name    string
		seconds int64
		want    time.Duration
		wantErr bool
	}{
		{name: "one hour", seconds: 3600, want: time.Hour},
		{name: "longest representable", seconds: maxDurationSeconds, want: time.Duration(maxDurationSeconds) * time.Second},
		{name: "zero", seconds: 0, wantErr: true},
		{name: "negative", seconds: -1, wantErr: true},
		{name: "wraps negative", seconds: 9223372037, wantErr: true},
		{name: "wraps to milliseconds", seconds: 18446744074, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &RegisterSubdomainRequest{Label: "sub", Owner: owner, DurationSeconds: tt.seconds}
			err := req.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidDuration))
				return
			}
			require.NoError(t, err)
			got := req.ToModel(parent).Duration
			assert.Equal(t, tt.want, got)
			assert.Positive(t, got)
		})
	}
}
