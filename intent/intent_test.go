package intent

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAnalyzerFuncAdapts(t *testing.T) {
	var a Analyzer = AnalyzerFunc(func(text string, prior []string) (Intent, error) {
		if text == "done" {
			return ProvidesFinalAnswer, nil
		}
		return Ambiguous, nil
	})

	got, err := a.Classify("done", nil)
	require.NoError(t, err)
	require.Equal(t, ProvidesFinalAnswer, got)
}

func TestIntentStringIsStable(t *testing.T) {
	require.Equal(t, "provides_final_answer", ProvidesFinalAnswer.String())
	require.Equal(t, "ambiguous", Ambiguous.String())
}
