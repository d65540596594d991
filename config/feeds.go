package config

import (
	"encoding/json"

	"hastycam/feed"
)

// Feeds returns the stored feed list, or the default list.
func (s *Store) Feeds() ([]feed.Feed, error) {
	var feeds []feed.Feed
	if err := s.Get(KeyFeeds, &feeds); err != nil {
		return nil, err
	}
	if feeds == nil {
		feeds = []feed.Feed{}
	}
	return feeds, nil
}

func (s *Store) SetFeeds(feeds []feed.Feed) error {
	if feeds == nil {
		feeds = []feed.Feed{}
	}
	return s.Set(KeyFeeds, feeds)
}

// Feed returns the feed with the given id, if any.
func (s *Store) Feed(id string) (feed.Feed, bool, error) {
	feeds, err := s.Feeds()
	if err != nil {
		return feed.Feed{}, false, err
	}
	for _, f := range feeds {
		if f.ID == id {
			return f, true, nil
		}
	}
	return feed.Feed{}, false, nil
}

// UpdateFeeds runs fn over the current feed list and stores its result. No
// other write can happen between the read and the write. If fn returns an
// error nothing is written.
func (s *Store) UpdateFeeds(fn func(feeds []feed.Feed) ([]feed.Feed, error)) error {
	s.l.Lock()
	var feeds []feed.Feed
	if err := json.Unmarshal(s.get(KeyFeeds), &feeds); err != nil {
		s.l.Unlock()
		return err
	}
	feeds, err := fn(feeds)
	if err == nil {
		if feeds == nil {
			feeds = []feed.Feed{}
		}
		err = s.set(KeyFeeds, feeds)
	}
	s.l.Unlock()
	if err != nil {
		return err
	}
	s.notify(KeyFeeds)
	return nil
}

// SaveFeed validates f and then replaces the stored feed with the same id,
// or appends f if there is none. Validation failures are returned as
// validate.Errors.
func (s *Store) SaveFeed(f feed.Feed) error {
	if errs := feed.Validate(f); len(errs) > 0 {
		return errs
	}
	return s.UpdateFeeds(func(feeds []feed.Feed) ([]feed.Feed, error) {
		for i := range feeds {
			if feeds[i].ID == f.ID {
				feeds[i] = f
				return feeds, nil
			}
		}
		return append(feeds, f), nil
	})
}

// DeleteFeed removes the feed with the given id, reporting whether it existed.
func (s *Store) DeleteFeed(id string) (bool, error) {
	found := false
	err := s.UpdateFeeds(func(feeds []feed.Feed) ([]feed.Feed, error) {
		out := feeds[:0]
		for _, f := range feeds {
			if f.ID == id {
				found = true
				continue
			}
			out = append(out, f)
		}
		if !found {
			return nil, errNotFound
		}
		return out, nil
	})
	if err == errNotFound {
		return false, nil
	}
	return found, err
}
