package domain

import "strings"

const (
	// CNPJLen is the number of digits in a canonical CNPJ.
	CNPJLen = 14
	// MaxCNPJDisplayLen is the length of a fully punctuated CNPJ.
	MaxCNPJDisplayLen = 18
)

// cnpjGroups lists where each digit group ends and which separator follows it:
// NN.NNN.NNN/NNNN-NN
var cnpjGroups = []struct {
	end int
	sep byte
}{
	{2, '.'},
	{5, '.'},
	{8, '/'},
	{12, '-'},
}

// CNPJDigits strips everything that is not an ASCII digit.
func CNPJDigits(raw string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
}

// FormatCNPJ renders raw input in display form. Digits beyond the fourteenth
// are dropped; a separator appears only after the next group has started, so
// partial input is partially grouped ("1122" -> "11.22").
func FormatCNPJ(raw string) string {
	digits := CNPJDigits(raw)
	if len(digits) > CNPJLen {
		digits = digits[:CNPJLen]
	}

	var b strings.Builder
	b.Grow(MaxCNPJDisplayLen)
	g := 0
	for i := 0; i < len(digits); i++ {
		if g < len(cnpjGroups) && i == cnpjGroups[g].end {
			b.WriteByte(cnpjGroups[g].sep)
			g++
		}
		b.WriteByte(digits[i])
	}
	return b.String()
}

// ValidateCNPJ reports whether raw holds exactly 14 digits once punctuation is
// removed. Check digits are not verified.
func ValidateCNPJ(raw string) bool {
	return len(CNPJDigits(raw)) == CNPJLen
}
