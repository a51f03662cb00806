package enum_test

import (
	"testing"

	"github.com/aurabot/aura/internal/database/types/enum"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaseTypeNamesRoundTrip(t *testing.T) {
	t.Parallel()

	for _, caseType := range []enum.CaseType{
		enum.CaseTypeWarn,
		enum.CaseTypeMute,
		enum.CaseTypeUnmute,
		enum.CaseTypeKick,
		enum.CaseTypeBan,
		enum.CaseTypeUnban,
	} {
		parsed, err := enum.ParseCaseType(caseType.String())
		require.NoError(t, err)
		assert.Equal(t, caseType, parsed)
	}
}

func TestParseCaseTypeRejectsUnknownName(t *testing.T) {
	t.Parallel()

	_, err := enum.ParseCaseType("banish")
	require.Error(t, err)
}

func TestReversalsMapToTheirOriginals(t *testing.T) {
	t.Parallel()

	assert.True(t, enum.CaseTypeUnmute.IsReversal())
	assert.True(t, enum.CaseTypeUnban.IsReversal())
	assert.False(t, enum.CaseTypeWarn.IsReversal())
	assert.False(t, enum.CaseTypeBan.IsReversal())

	assert.Equal(t, enum.CaseTypeMute, enum.CaseTypeUnmute.Reverses())
	assert.Equal(t, enum.CaseTypeBan, enum.CaseTypeUnban.Reverses())
}
