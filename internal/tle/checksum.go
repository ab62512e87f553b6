package tle

// Checksum computes the modulo-10 checksum over the first 68 columns of a
// TLE line: digits add their value, '-' adds 1, everything else is ignored.
// Lines shorter than 68 characters are summed as far as they go.
func Checksum(line string) int {
	n := len(line)
	if n > minLineLen-1 {
		n = minLineLen - 1
	}
	sum := 0
	for i := 0; i < n; i++ {
		switch c := line[i]; {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	return sum % 10
}

// ValidateChecksum reports whether the digit in column 69 matches Checksum.
// Being a mod-10 digit sum, it cannot detect edits whose digit deltas
// cancel out modulo 10 (e.g. a transposition, or +3 in one column and -3
// in another).
func ValidateChecksum(line string) bool {
	if len(line) < minLineLen {
		return false
	}
	c := line[minLineLen-1]
	if c < '0' || c > '9' {
		return false
	}
	return int(c-'0') == Checksum(line)
}
