package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"hastycam/feed"
	"hastycam/validate"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	l    sync.Mutex
	keys []Key
}

func (r *recorder) ConfigUpdated(key Key) {
	r.l.Lock()
	defer r.l.Unlock()
	r.keys = append(r.keys, key)
}

func (r *recorder) count() int {
	r.l.Lock()
	defer r.l.Unlock()
	return len(r.keys)
}

func (r *recorder) snapshot() []Key {
	r.l.Lock()
	defer r.l.Unlock()
	return append([]Key(nil), r.keys...)
}

// memBackend keeps the document in memory. When loading is set, Load
// announces itself there and then waits on release before returning the
// document it read.
type memBackend struct {
	l   sync.Mutex
	doc Document

	loading chan struct{}
	release chan struct{}
}

func (b *memBackend) Load() (Document, error) {
	b.l.Lock()
	doc := b.doc.clone()
	b.l.Unlock()
	if b.loading != nil {
		b.loading <- struct{}{}
		<-b.release
	}
	return doc, nil
}

func (b *memBackend) Save(doc Document) error {
	b.l.Lock()
	defer b.l.Unlock()
	b.doc = doc.clone()
	return nil
}

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "appConfig.json")
	s, err := Open(path, Defaults())
	require.NoError(t, err)
	return s, path
}

func testFeed(id string) feed.Feed {
	return feed.Feed{ID: id, Name: "Gate " + id, StreamURL: "rtsp://cam/" + id}
}

func TestAllOnEmptyStoreIsDefaults(t *testing.T) {
	s, path := openTemp(t)
	c, err := s.All()
	require.NoError(t, err)
	assert.Equal(t, Defaults(), c)

	// Reading never creates the file.
	_, err = os.Stat(path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestSetGetRoundTrip(t *testing.T) {
	s, _ := openTemp(t)
	f := testFeed("1")
	f.VideoQuality = feed.Int(10)
	f.MotionRegions = []feed.MotionRegion{{0, 0, 5, 5}}

	require.NoError(t, s.Set(KeyFeeds, []feed.Feed{f}))

	var got []feed.Feed
	require.NoError(t, s.Get(KeyFeeds, &got))
	assert.Equal(t, []feed.Feed{f}, got)
}

func TestRemoveRestoresDefault(t *testing.T) {
	s, _ := openTemp(t)
	require.NoError(t, s.SetFeeds([]feed.Feed{testFeed("1")}))
	require.NoError(t, s.Remove(KeyFeeds))

	feeds, err := s.Feeds()
	require.NoError(t, err)
	assert.NotNil(t, feeds)
	assert.Empty(t, feeds)
}

func TestPersistsAcrossHandles(t *testing.T) {
	s, path := openTemp(t)
	require.NoError(t, s.SetFeeds([]feed.Feed{testFeed("1"), testFeed("2")}))

	s2, err := Open(path, Defaults())
	require.NoError(t, err)
	c, err := s2.All()
	require.NoError(t, err)
	assert.Equal(t, []feed.Feed{testFeed("1"), testFeed("2")}, c.Feeds)
}

func TestUnknownKey(t *testing.T) {
	s, _ := openTemp(t)
	var v interface{}
	assert.ErrorIs(t, s.Get("cameras", &v), ErrUnknownKey)
	assert.ErrorIs(t, s.Set("cameras", 1), ErrUnknownKey)
	assert.ErrorIs(t, s.Remove("cameras"), ErrUnknownKey)
}

func TestCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "appConfig.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))
	_, err := Open(path, Defaults())
	assert.Error(t, err)
}

type failingBackend struct{}

func (failingBackend) Load() (Document, error) { return Document{}, nil }
func (failingBackend) Save(Document) error     { return errors.New("disk full") }

func TestWriteFailurePropagates(t *testing.T) {
	s, err := OpenBackend(failingBackend{}, Defaults())
	require.NoError(t, err)

	assert.EqualError(t, s.SetFeeds([]feed.Feed{testFeed("1")}), "disk full")
	feeds, err := s.Feeds()
	require.NoError(t, err)
	assert.Empty(t, feeds)
}

func TestSaveFeedReplacesByID(t *testing.T) {
	s, _ := openTemp(t)
	require.NoError(t, s.SaveFeed(testFeed("1")))
	require.NoError(t, s.SaveFeed(testFeed("2")))

	updated := testFeed("1")
	updated.Name = "Front door"
	require.NoError(t, s.SaveFeed(updated))

	feeds, err := s.Feeds()
	require.NoError(t, err)
	require.Len(t, feeds, 2)
	assert.Equal(t, "Front door", feeds[0].Name)
	assert.Equal(t, "2", feeds[1].ID)

	f, ok, err := s.Feed("1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, updated, f)
}

func TestSaveFeedRejectsInvalid(t *testing.T) {
	s, _ := openTemp(t)
	err := s.SaveFeed(feed.Feed{ID: "1"})
	var errs validate.Errors
	require.True(t, errors.As(err, &errs))
	assert.Len(t, errs, 2)

	feeds, err := s.Feeds()
	require.NoError(t, err)
	assert.Empty(t, feeds)
}

func TestDeleteFeed(t *testing.T) {
	s, _ := openTemp(t)
	require.NoError(t, s.SetFeeds([]feed.Feed{testFeed("1"), testFeed("2")}))

	ok, err := s.DeleteFeed("1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.DeleteFeed("nope")
	require.NoError(t, err)
	assert.False(t, ok)

	feeds, err := s.Feeds()
	require.NoError(t, err)
	assert.Equal(t, []feed.Feed{testFeed("2")}, feeds)
}

func TestConcurrentSavesAreNotLost(t *testing.T) {
	s, _ := openTemp(t)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.SaveFeed(testFeed(string(rune('a'+i)))))
		}(i)
	}
	wg.Wait()
	feeds, err := s.Feeds()
	require.NoError(t, err)
	assert.Len(t, feeds, 20)
}

func TestListenersNotified(t *testing.T) {
	s, _ := openTemp(t)
	r := &recorder{}
	s.Listeners = append(s.Listeners, r)

	require.NoError(t, s.SaveFeed(testFeed("1")))
	require.NoError(t, s.Remove(KeyFeeds))
	assert.Equal(t, []Key{KeyFeeds, KeyFeeds}, r.snapshot())
}

func TestReloadDoesNotOverwriteConcurrentWrite(t *testing.T) {
	b := &memBackend{doc: Document{}}
	s, err := OpenBackend(b, Defaults())
	require.NoError(t, err)

	// Someone else edits the stored document.
	external, err := encode(Config{Feeds: []feed.Feed{testFeed("ext")}})
	require.NoError(t, err)
	require.NoError(t, b.Save(external))

	b.loading = make(chan struct{})
	b.release = make(chan struct{})

	reloaded := make(chan error)
	go func() {
		_, err := s.reload()
		reloaded <- err
	}()
	<-b.loading

	// A write racing with the reload must land after it, not be undone by it.
	written := make(chan error)
	go func() {
		written <- s.SetFeeds([]feed.Feed{testFeed("2")})
	}()
	time.Sleep(50 * time.Millisecond)
	close(b.release)

	require.NoError(t, <-reloaded)
	require.NoError(t, <-written)

	feeds, err := s.Feeds()
	require.NoError(t, err)
	assert.Equal(t, []feed.Feed{testFeed("2")}, feeds)
}

func TestReloadSkipsUnchangedDocument(t *testing.T) {
	s, _ := openTemp(t)
	require.NoError(t, s.SetFeeds([]feed.Feed{testFeed("1")}))

	changed, err := s.reload()
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestWatchIgnoresOwnWrites(t *testing.T) {
	s, _ := openTemp(t)
	r := &recorder{}
	s.Listeners = append(s.Listeners, r)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Watch(ctx))

	require.NoError(t, s.SetFeeds([]feed.Feed{testFeed("1")}))
	time.Sleep(5 * settleTime)
	assert.Equal(t, []Key{KeyFeeds}, r.snapshot())
}

func TestWatchReloadsExternalEdits(t *testing.T) {
	s, path := openTemp(t)
	require.NoError(t, s.SetFeeds([]feed.Feed{testFeed("1")}))
	r := &recorder{}
	s.Listeners = append(s.Listeners, r)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Watch(ctx))

	other, err := Open(path, Defaults())
	require.NoError(t, err)
	require.NoError(t, other.SetFeeds([]feed.Feed{testFeed("1"), testFeed("2")}))

	assert.Eventually(t, func() bool {
		feeds, err := s.Feeds()
		return err == nil && len(feeds) == 2
	}, 2*time.Second, 20*time.Millisecond)
	assert.Eventually(t, func() bool { return r.count() > 0 }, time.Second, 20*time.Millisecond)
}
