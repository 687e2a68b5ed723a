package reddit

import (
	"context"
	"iter"
	"slices"

	"BananaBot/internal/domain"
	"BananaBot/internal/ports"
)

var _ ports.FeedSource = (*Client)(nil)

// Stream polls the comment listing of scope. The first poll only seeds the
// seen set so the sequence starts from "now".
func (c *Client) Stream(ctx context.Context, scope string) iter.Seq2[domain.Event, error] {
	return func(yield func(domain.Event, error) bool) {
		seen := newBoundedSet(seenMax)
		seeded := false
		for {
			if err := c.limiter.Wait(ctx); err != nil {
				yield(domain.Event{}, err)
				return
			}
			page, _, err := c.listComments(ctx, scope, pageSize, "")
			if err != nil {
				yield(domain.Event{}, err)
				return
			}
			slices.Reverse(page)

			fresh := 0
			for _, ev := range page {
				if !seen.Add(ev.ID) {
					continue
				}
				if !seeded {
					continue
				}
				fresh++
				if !yield(ev, nil) {
					return
				}
			}
			if !seeded {
				c.logger.Info("reddit stream seeded", "scope", scope, "seen", len(page))
				seeded = true
			} else if fresh > 0 {
				c.logger.Debug("reddit poll", "scope", scope, "new", fresh)
			}
		}
	}
}

// Recent returns up to limit of the latest comments, oldest first.
func (c *Client) Recent(ctx context.Context, scope string, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		return nil, nil
	}
	collected := make([]domain.Event, 0, limit)
	after := ""
	for len(collected) < limit {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		page, next, err := c.listComments(ctx, scope, min(pageSize, limit-len(collected)), after)
		if err != nil {
			return nil, err
		}
		collected = append(collected, page...)
		if next == "" || len(page) == 0 {
			break
		}
		after = next
	}
	if len(collected) > limit {
		collected = collected[:limit]
	}
	slices.Reverse(collected)
	return collected, nil
}

// boundedSet remembers the most recent ids, evicting the oldest first.
type boundedSet struct {
	max   int
	order []string
	items map[string]struct{}
}

func newBoundedSet(max int) *boundedSet {
	return &boundedSet{max: max, items: make(map[string]struct{}, max)}
}

// Add reports whether id was newly inserted.
func (b *boundedSet) Add(id string) bool {
	if _, ok := b.items[id]; ok {
		return false
	}
	b.items[id] = struct{}{}
	b.order = append(b.order, id)
	if len(b.order) > b.max {
		oldest := b.order[0]
		b.order = b.order[1:]
		delete(b.items, oldest)
	}
	return true
}
