package seeds

import "sort"

// ScoreEntry is one distinct live score and the number of candidates holding
// it.
type ScoreEntry struct {
	Score uint64
	Count uint32
}

// ScoreList is sorted by descending score without duplicates.
type ScoreList []ScoreEntry

func (l ScoreList) search(score uint64) int {
	return sort.Search(len(l), func(i int) bool { return l[i].Score <= score })
}

// Insert records one more candidate holding score.
func (l ScoreList) Insert(score uint64) ScoreList {
	i := l.search(score)
	if i < len(l) && l[i].Score == score {
		l[i].Count++
		return l
	}
	l = append(l, ScoreEntry{})
	copy(l[i+1:], l[i:])
	l[i] = ScoreEntry{Score: score, Count: 1}
	return l
}

// Remove drops one candidate holding score. Unknown scores are ignored.
func (l ScoreList) Remove(score uint64) ScoreList {
	i := l.search(score)
	if i >= len(l) || l[i].Score != score {
		return l
	}
	if l[i].Count > 1 {
		l[i].Count--
		return l
	}
	return append(l[:i], l[i+1:]...)
}

// Higher counts the candidates holding a score strictly above score.
func (l ScoreList) Higher(score uint64) uint64 {
	var n uint64
	for _, e := range l {
		if e.Score <= score {
			break
		}
		n += uint64(e.Count)
	}
	return n
}
