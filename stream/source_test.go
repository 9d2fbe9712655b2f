package stream

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectFragments(t *testing.T, src TokenSource, prompt string) ([]string, error) {
	t.Helper()
	frags, err := src.Stream(context.Background(), prompt)
	require.NoError(t, err)

	var texts []string
	for frag := range frags {
		if frag.Err != nil {
			return texts, frag.Err
		}
		texts = append(texts, frag.Text)
	}
	return texts, nil
}

func TestScriptedSource_ReplaysInOrder(t *testing.T) {
	src := &ScriptedSource{Pieces: []string{"a ", "b ", "c "}, FailAfter: -1}
	texts, err := collectFragments(t, src, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a ", "b ", "c "}, texts)
}

func TestScriptedSource_InjectedFailure(t *testing.T) {
	boom := errors.New("boom")
	src := &ScriptedSource{Pieces: []string{"a ", "b ", "c "}, FailAfter: 1, FailWith: boom}

	texts, err := collectFragments(t, src, "")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a "}, texts)
}

func TestScriptedSource_CancelStopsReplay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &ScriptedSource{Pieces: []string{"a ", "b ", "c "}}
	frags, err := src.Stream(ctx, "")
	require.NoError(t, err)

	<-frags
	cancel()

	// 取消后通道很快关闭，不再无限产出。
	count := 0
	for range frags {
		count++
	}
	assert.LessOrEqual(t, count, 2)
}

func TestDemoSource_PromptSelectsScript(t *testing.T) {
	src := &DemoSource{}

	t.Run("default script carries sensitive content", func(t *testing.T) {
		texts, err := collectFragments(t, src, "look up a patient record")
		require.NoError(t, err)
		assert.Contains(t, strings.Join(texts, ""), "123-45-6789")
	})

	t.Run("safe prompt selects the clean script", func(t *testing.T) {
		texts, err := collectFragments(t, src, "give me a safe general answer")
		require.NoError(t, err)
		joined := strings.Join(texts, "")
		assert.NotContains(t, joined, "123-45-6789")
		assert.Contains(t, joined, "general guidance")
	})
}
