package diagnostics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nsfw/kelp/internal/layout"
)

func TestFromErrorFaults(t *testing.T) {
	in := &layout.Installation{
		Width:  1,
		Height: 1,
		Strands: []layout.Strand{
			layout.NewStrand(22, layout.Run(0, 0, 0, 1)),
			layout.NewStrand(22, layout.Run(0, 0, 0, 0)),
		},
	}
	err := fmt.Errorf("startup: %w", layout.Validate(in, nil))
	ds := FromError(err)
	require.Len(t, ds, 2)
	assert.Equal(t, string(layout.FaultOutOfBounds), ds[0].Code)
	assert.Equal(t, 0, ds[0].Evidence["strand"])
	assert.Equal(t, 1, ds[0].Evidence["led"])
	assert.Equal(t, string(layout.FaultDuplicatePin), ds[1].Code)
	assert.NotEmpty(t, ds[1].SuggestedFixes)
	for _, d := range ds {
		assert.Equal(t, Err, d.Severity)
	}
}

func TestFromErrorPlain(t *testing.T) {
	assert.Nil(t, FromError(nil))
	ds := FromError(errors.New("boom"))
	require.Len(t, ds, 1)
	assert.Equal(t, "boom", ds[0].Summary)
}

func TestStall(t *testing.T) {
	d := Stall("transmitting", 12, 300*time.Millisecond)
	assert.Equal(t, Warn, d.Severity)
	assert.Equal(t, int64(300), d.Evidence["waited_ms"])
	assert.Contains(t, d.Summary, "slice 12")
}
