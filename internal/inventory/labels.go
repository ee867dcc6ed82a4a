package inventory

import "fmt"

// rowLabel converts a zero-based row index into an alphabetical label
// like A, B, ..., Z, AA, AB.  Layouts allocate row indices sequentially
// across categories so labels never repeat within one event.
func rowLabel(i int) string {
	if i < 0 {
		return ""
	}
	res := []rune{}
	for {
		rem := i % 26
		res = append(res, rune('A'+rem))
		i = i/26 - 1
		if i < 0 {
			break
		}
	}
	for j, k := 0, len(res)-1; j < k; j, k = j+1, k-1 {
		res[j], res[k] = res[k], res[j]
	}
	return string(res)
}

// seatID builds the stable seat identifier from a row label and a
// one-based seat number, e.g. "A1" or "AB12".
func seatID(row string, number uint32) string {
	return fmt.Sprintf("%s%d", row, number)
}
