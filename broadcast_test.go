package fluxgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxgraph/fluxgraph/model"
)

func TestResolveBroadcast(t *testing.T) {
	tests := []struct {
		name    string
		us, vs  []model.NodeID
		wantU   []model.NodeID
		wantV   []model.NodeID
		wantErr bool
	}{
		{
			name:  "equal lengths zip",
			us:    []model.NodeID{0, 1, 2},
			vs:    []model.NodeID{3, 4, 5},
			wantU: []model.NodeID{0, 1, 2},
			wantV: []model.NodeID{3, 4, 5},
		},
		{
			name:  "single destination fans in",
			us:    []model.NodeID{0, 1, 2},
			vs:    []model.NodeID{5},
			wantU: []model.NodeID{0, 1, 2},
			wantV: []model.NodeID{5, 5, 5},
		},
		{
			name:  "single source fans out",
			us:    []model.NodeID{0},
			vs:    []model.NodeID{5, 6, 7},
			wantU: []model.NodeID{0, 0, 0},
			wantV: []model.NodeID{5, 6, 7},
		},
		{
			name:  "both single",
			us:    []model.NodeID{1},
			vs:    []model.NodeID{2},
			wantU: []model.NodeID{1},
			wantV: []model.NodeID{2},
		},
		{
			name:    "incompatible lengths",
			us:      []model.NodeID{0, 1},
			vs:      []model.NodeID{5, 6, 7},
			wantErr: true,
		},
		{
			name:    "empty source",
			us:      nil,
			vs:      []model.NodeID{5},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			su, sv, err := ResolveBroadcast(tt.us, tt.vs)
			if tt.wantErr {
				var be *BroadcastError
				require.ErrorAs(t, err, &be)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantU, su)
			assert.Equal(t, tt.wantV, sv)
		})
	}
}
