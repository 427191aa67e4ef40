package battle

import "sort"

// RankingPoints computes the deterministic ladder score for one participant:
//
//	wins*100 + min(50, winRate/2) + min(100, streak*10) +
//	min(25, totalBattles/4) + consistency bonus + newcomer bonus
func RankingPoints(s *PlayerStats) int {
	points := s.Wins * 100
	points += minInt(50, s.WinRate/2)
	points += minInt(100, s.Streak*10)
	points += minInt(25, s.TotalBattles/4)

	switch {
	case s.TotalBattles >= 10 && s.WinRate >= 70:
		points += 25
	case s.TotalBattles >= 5 && s.WinRate >= 80:
		points += 15
	}
	if s.TotalBattles <= 3 && s.Wins > 0 {
		points += 20
	}
	return points
}

// ComputeRanks orders all participants by (points, wins, winRate) descending
// and assigns 1-based ranks. Ties beyond the three keys keep their incoming
// relative order, which makes repeated recomputation stable.
func ComputeRanks(stats []PlayerStats) map[string]int {
	type entry struct {
		username string
		points   int
		wins     int
		winRate  int
	}
	entries := make([]entry, 0, len(stats))
	for i := range stats {
		s := &stats[i]
		entries = append(entries, entry{
			username: s.Username,
			points:   RankingPoints(s),
			wins:     s.Wins,
			winRate:  s.WinRate,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].points != entries[j].points {
			return entries[i].points > entries[j].points
		}
		if entries[i].wins != entries[j].wins {
			return entries[i].wins > entries[j].wins
		}
		return entries[i].winRate > entries[j].winRate
	})

	ranks := make(map[string]int, len(entries))
	for i, e := range entries {
		ranks[e.username] = i + 1
	}
	return ranks
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
