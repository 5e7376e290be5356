package matching

// Drain pairs waiting entries two at a time, oldest first, until fewer than
// two entries remain.
//
// valid reports whether an id still belongs to a live, searching user. When
// one of the two popped ids is stale it is dropped (and passed to discard, if
// non-nil) while the other goes back to the front so it keeps its priority.
// pair is called with the older id first. Drain returns the number of pairs
// made; calling it on a pool with fewer than two entries is a no-op.
func Drain(p *Pool, valid func(id string) bool, pair func(older, newer string), discard func(id string)) int {
	paired := 0
	for p.Len() >= 2 {
		first, _ := p.PopFront()
		second, _ := p.PopFront()

		firstOK, secondOK := valid(first), valid(second)
		switch {
		case firstOK && secondOK:
			pair(first, second)
			paired++
		case firstOK:
			p.PushFront(first)
			if discard != nil {
				discard(second)
			}
		case secondOK:
			p.PushFront(second)
			if discard != nil {
				discard(first)
			}
		default:
			if discard != nil {
				discard(first)
				discard(second)
			}
		}
	}
	return paired
}
