package resolution

import "strings"

// similarityRatio returns a case-insensitive similarity in [0,1]
// computed as 2*M/T, where M is the total length of the matching
// blocks between the two strings and T the sum of their lengths.
func similarityRatio(a string, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)

	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	m := matchingChars(a, b)
	return 2.0 * float64(m) / float64(len(a)+len(b))
}

// matchingChars sums the lengths of the matching blocks found by
// recursively splitting around the longest common substring.
func matchingChars(a string, b string) int {
	ai, bi, size := longestCommonSubstring(a, b)
	if size == 0 {
		return 0
	}
	return size +
		matchingChars(a[:ai], b[:bi]) +
		matchingChars(a[ai+size:], b[bi+size:])
}

// longestCommonSubstring returns the start offsets and length of the
// longest substring common to a and b.
func longestCommonSubstring(a string, b string) (int, int, int) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 0, 0
	}

	// lengths[j] is the length of the common suffix ending at a[i-1], b[j-1]
	lengths := make([]int, len(b)+1)
	bestA, bestB, bestSize := 0, 0, 0

	for i := 1; i <= len(a); i++ {
		prev := 0
		for j := 1; j <= len(b); j++ {
			cur := lengths[j]
			if a[i-1] == b[j-1] {
				lengths[j] = prev + 1
				if lengths[j] > bestSize {
					bestSize = lengths[j]
					bestA = i - bestSize
					bestB = j - bestSize
				}
			} else {
				lengths[j] = 0
			}
			prev = cur
		}
	}

	return bestA, bestB, bestSize
}
