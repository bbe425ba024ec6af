package brackets

import "fmt"

var stageByCount = map[int]string{
	32: "Round of 32",
	16: "Round of 16",
	8:  "Quarter Finals",
	4:  "Semi Finals",
	2:  "Finals",
}

// StageLabel names a round by its population. Sizes outside the halving
// sequence get a generic label.
func StageLabel(n int) string {
	if label, ok := stageByCount[n]; ok {
		return label
	}
	return fmt.Sprintf("%d-items round", n)
}

// IsFinals reports whether label is the last head-to-head stage.
func IsFinals(label string) bool {
	return label == stageByCount[2]
}
