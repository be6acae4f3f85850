package worklist

import (
	"errors"
	"math/rand/v2"
	"strings"
)

var ErrEmptyPool = errors.New("wish pool is empty")

// WishPool is the day's greetings. Picking never removes a wish.
type WishPool struct {
	wishes []string
}

func NewWishPool(lines []string) *WishPool {
	p := &WishPool{}
	for _, line := range lines {
		if w := strings.TrimSpace(line); w != "" {
			p.wishes = append(p.wishes, w)
		}
	}
	return p
}

func (p *WishPool) Len() int {
	return len(p.wishes)
}

// Pick returns a uniformly random wish.
func (p *WishPool) Pick(r *rand.Rand) (string, error) {
	if len(p.wishes) == 0 {
		return "", ErrEmptyPool
	}
	if r == nil {
		return p.wishes[rand.IntN(len(p.wishes))], nil
	}
	return p.wishes[r.IntN(len(p.wishes))], nil
}
