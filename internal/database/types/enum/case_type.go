package enum

import "fmt"

// CaseType represents the kind of moderation action recorded in a case.
type CaseType int

const (
	// CaseTypeWarn records a verbal warning with no platform action.
	CaseTypeWarn CaseType = iota
	// CaseTypeMute records a timed communication timeout.
	CaseTypeMute
	// CaseTypeUnmute records the removal of an active timeout.
	CaseTypeUnmute
	// CaseTypeKick records a removal from the guild.
	CaseTypeKick
	// CaseTypeBan records a guild ban.
	CaseTypeBan
	// CaseTypeUnban records the removal of a guild ban.
	CaseTypeUnban
)

var caseTypeNames = map[CaseType]string{
	CaseTypeWarn:   "warn",
	CaseTypeMute:   "mute",
	CaseTypeUnmute: "unmute",
	CaseTypeKick:   "kick",
	CaseTypeBan:    "ban",
	CaseTypeUnban:  "unban",
}

// String returns the lowercase name of the case type.
func (t CaseType) String() string {
	if name, ok := caseTypeNames[t]; ok {
		return name
	}

	return fmt.Sprintf("CaseType(%d)", int(t))
}

// IsReversal reports whether this case type undoes an earlier action.
func (t CaseType) IsReversal() bool {
	return t == CaseTypeUnmute || t == CaseTypeUnban
}

// Reverses returns the case type this reversal undoes.
// Only meaningful when IsReversal is true.
func (t CaseType) Reverses() CaseType {
	switch t {
	case CaseTypeUnmute:
		return CaseTypeMute
	case CaseTypeUnban:
		return CaseTypeBan
	default:
		return t
	}
}

// ParseCaseType converts a lowercase name back into a CaseType.
func ParseCaseType(name string) (CaseType, error) {
	for t, n := range caseTypeNames {
		if n == name {
			return t, nil
		}
	}

	return 0, fmt.Errorf("%s does not belong to CaseType values", name)
}

// MarshalText implements encoding.TextMarshaler.
func (t CaseType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *CaseType) UnmarshalText(text []byte) error {
	parsed, err := ParseCaseType(string(text))
	if err != nil {
		return err
	}

	*t = parsed

	return nil
}
