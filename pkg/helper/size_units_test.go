package helper_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/blockframe/blockframe/pkg/helper"
)

func TestParseSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		sizeStr string
		size    uint64
		wantErr bool
	}{
		{sizeStr: "1GB", size: 1_000_000_000},
		{sizeStr: "2GB", size: 2_000_000_000},
		{sizeStr: "500MB", size: 500_000_000},
		{sizeStr: "1MB", size: 1_000_000},
		{sizeStr: "250KB", size: 250_000},
		{sizeStr: "1KB", size: 1_000},
		{sizeStr: "2048B", size: 2048},
		{sizeStr: "2048bytes", size: 2048},

		// lowercase and whitespace
		{sizeStr: "1gb", size: 1_000_000_000},
		{sizeStr: " 1 GB ", size: 1_000_000_000},

		// fractional
		{sizeStr: "1.5GB", size: 1_500_000_000},

		// errors
		{sizeStr: "", wantErr: true},
		{sizeStr: "20", wantErr: true},
		{sizeStr: "2A", wantErr: true},
		{sizeStr: "-1GB", wantErr: true},
		{sizeStr: "GB", wantErr: true},
	}

	for _, test := range tests {
		tn := fmt.Sprintf("ParseSize(%q) -> %d", test.sizeStr, test.size)
		t.Run(tn, func(t *testing.T) {
			t.Parallel()

			s, err := helper.ParseSize(test.sizeStr)

			if test.wantErr {
				assert.Error(t, err)

				return
			}

			assert.NoError(t, err)
			assert.Equal(t, test.size, s)
		})
	}
}
