package points

// NextMilestone returns the smallest milestone strictly greater than total.
// Past the last milestone it returns the last one (the final tier).
// Milestones must be ascending; an empty list yields 0.
func NextMilestone(total int, milestones []int) int {
	for _, m := range milestones {
		if m > total {
			return m
		}
	}
	if len(milestones) == 0 {
		return 0
	}
	return milestones[len(milestones)-1]
}

// Progress describes where a total sits between two milestones.
type Progress struct {
	Reached  int     `json:"reached"`  // highest milestone <= total, 0 if none
	Next     int     `json:"next"`     // see NextMilestone
	Tier     int     `json:"tier"`     // number of milestones reached
	Percent  float64 `json:"percent"`  // 0-100 towards Next
	MaxLevel bool    `json:"max_level"`
}

// ProgressFor is display-only; it is not used for prizes.
func ProgressFor(total int, milestones []int) Progress {
	p := Progress{Next: NextMilestone(total, milestones)}
	for _, m := range milestones {
		if m <= total {
			p.Reached = m
			p.Tier++
		}
	}
	if len(milestones) > 0 && p.Tier == len(milestones) {
		p.MaxLevel = true
		p.Percent = 100
		return p
	}
	span := p.Next - p.Reached
	if span > 0 {
		p.Percent = float64(total-p.Reached) / float64(span) * 100
	}
	return p
}
