package gitsync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCloneStderr = "Cloning into 'data'...\n" +
	"remote: Enumerating objects: 20, done.\n" +
	"remote: Counting objects:  50% (10/20)\rremote: Counting objects: 100% (20/20)\rremote: Counting objects: 100% (20/20), done.\n" +
	"remote: Compressing objects: 100% (15/15), done.\n" +
	"Receiving objects:  10% (2/20)\rReceiving objects:  60% (12/20), 1.2 MiB | 2.0 MiB/s\r" +
	"Receiving objects: 100% (20/20), 2.4 MiB | 2.0 MiB/s, done.\n" +
	"Resolving deltas:   0% (0/4)\rResolving deltas: 100% (4/4), done.\n"

func collect(t *testing.T, chunks ...string) []Progress {
	t.Helper()
	var got []Progress
	w := newProgressWriter(func(p Progress) { got = append(got, p) })
	for _, c := range chunks {
		n, err := w.Write([]byte(c))
		require.NoError(t, err)
		require.Equal(t, len(c), n)
	}
	w.Flush()
	return got
}

func TestProgressWriter_PhaseOrderAndMonotonic(t *testing.T) {
	got := collect(t, sampleCloneStderr)
	require.NotEmpty(t, got)

	order := map[Phase]int{PhaseCounting: 0, PhaseCompressing: 1, PhaseReceiving: 2, PhaseResolving: 3}
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i].Percent, got[i-1].Percent, "step %d", i)
		assert.GreaterOrEqual(t, order[got[i].Phase], order[got[i-1].Phase], "step %d", i)
	}
	assert.Equal(t, Progress{Percent: 2, Phase: PhaseCounting}, got[0])
	assert.Equal(t, Progress{Percent: 99, Phase: PhaseResolving}, got[len(got)-1])
	for _, p := range got {
		assert.Less(t, p.Percent, 100)
	}
}

func TestProgressWriter_SplitAcrossWrites(t *testing.T) {
	whole := collect(t, sampleCloneStderr)

	var chunks []string
	for i := 0; i < len(sampleCloneStderr); i += 7 {
		end := i + 7
		if end > len(sampleCloneStderr) {
			end = len(sampleCloneStderr)
		}
		chunks = append(chunks, sampleCloneStderr[i:end])
	}
	assert.Equal(t, whole, collect(t, chunks...))
}

func TestProgressWriter_IgnoresBackwardsPhases(t *testing.T) {
	got := collect(t,
		"Receiving objects:  50% (1/2)\n",
		"remote: Counting objects: 100% (2/2)\n",
		"Receiving objects:  40% (1/2)\n",
	)
	assert.Equal(t, []Progress{{Percent: 52, Phase: PhaseReceiving}}, got)
}

func TestProgressWriter_TrailingPartialLine(t *testing.T) {
	got := collect(t, "Resolving deltas:  50% (1/2)")
	assert.Equal(t, []Progress{{Percent: 94, Phase: PhaseResolving}}, got)
}
