package workspace

import (
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"labelscope/annotations"
	"labelscope/editor"
)

var errSessionNotInCache = errors.New("the session isn't in cache")

// Flusher persists the state of a session.
type Flusher interface {
	Flush(project string, doc *annotations.Document, classes []editor.Class) error
}

type cachedSession struct {
	session  *Session
	expireAt time.Time
}

// Cache keeps live sessions in memory and flushes them once they have not
// been used for ttl.
type Cache struct {
	stop chan struct{}

	wg       sync.WaitGroup
	mu       sync.RWMutex
	sessions map[string]cachedSession

	ttl     time.Duration
	flusher Flusher
	now     func() time.Time
}

// NewCache Create a new session cache
func NewCache(ttl, cleanupInterval time.Duration, flusher Flusher) *Cache {
	log.Info("Creating new session cache with cleanup interval ", cleanupInterval)
	c := &Cache{
		sessions: make(map[string]cachedSession),
		stop:     make(chan struct{}),
		ttl:      ttl,
		flusher:  flusher,
		now:      time.Now,
	}

	c.wg.Add(1)
	go func(cleanupInterval time.Duration) {
		defer c.wg.Done()
		c.cleanupLoop(cleanupInterval)
	}(cleanupInterval)

	return c
}

// cleanupLoop Flush and drop expired sessions
func (c *Cache) cleanupLoop(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-t.C:
			c.expire()
		}
	}
}

// expire flushes expired sessions and then drops those that were not used
// while the flush ran. Flushing happens outside the lock.
func (c *Cache) expire() int {
	now := c.now()
	type candidate struct {
		id      string
		session *Session
	}
	var expired []candidate

	c.mu.RLock()
	for id, cs := range c.sessions {
		if !cs.expireAt.After(now) {
			expired = append(expired, candidate{id: id, session: cs.session})
		}
	}
	c.mu.RUnlock()

	evicted := 0
	for _, e := range expired {
		c.flush(e.session)

		c.mu.Lock()
		cs, ok := c.sessions[e.id]
		if ok && cs.session == e.session && !cs.expireAt.After(now) {
			log.Info("Session expired: ", e.id)
			delete(c.sessions, e.id)
			evicted++
		}
		c.mu.Unlock()
	}
	return evicted
}

func (c *Cache) flush(s *Session) {
	if c.flusher == nil {
		return
	}
	if err := s.Flush(c.flusher); err != nil {
		log.Error(fmt.Sprintf("Cannot flush session %s: %v", s.Project(), err))
	}
}

// Update Add a session to the cache
func (c *Cache) Update(s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	log.Debug(fmt.Sprintf("Updating %s in cache", s.Project()))

	c.sessions[s.Project()] = cachedSession{session: s, expireAt: c.now().Add(c.ttl)}
	log.Debug(fmt.Sprintf("There are now %d sessions in cache", len(c.sessions)))
}

// Read Read a session from the cache and extend its lifetime
func (c *Cache) Read(project string) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cs, ok := c.sessions[project]
	if !ok {
		log.Debug("Session not found ", project)
		return nil, errSessionNotInCache
	}
	cs.expireAt = c.now().Add(c.ttl)
	c.sessions[project] = cs
	return cs.session, nil
}

// GetOrLoad returns the cached session or builds one with load.
func (c *Cache) GetOrLoad(project string, load func(project string) (*Session, error)) (*Session, error) {
	if s, err := c.Read(project); err == nil {
		return s, nil
	}
	s, err := load(project)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cs, ok := c.sessions[project]; ok {
		// Someone else loaded it first.
		return cs.session, nil
	}
	c.sessions[project] = cachedSession{session: s, expireAt: c.now().Add(c.ttl)}
	return s, nil
}

// Delete Drop a session without flushing it
func (c *Cache) Delete(project string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, project)
}

// Save flushes a cached session immediately.
func (c *Cache) Save(project string) error {
	s, err := c.Read(project)
	if err != nil {
		return err
	}
	if c.flusher == nil {
		return nil
	}
	return s.Flush(c.flusher)
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions)
}

// EmptyCache Flush and remove all sessions
func (c *Cache) EmptyCache() {
	c.mu.Lock()
	all := make([]*Session, 0, len(c.sessions))
	for id, cs := range c.sessions {
		log.Debug(fmt.Sprintf("Deleting session %s", id))
		all = append(all, cs.session)
	}
	c.sessions = make(map[string]cachedSession)
	c.mu.Unlock()

	for _, s := range all {
		c.flush(s)
	}
}

// Close stops the cleanup loop and flushes what is left.
func (c *Cache) Close() {
	close(c.stop)
	c.wg.Wait()
	c.EmptyCache()
}

func IsNotCached(err error) bool {
	return errors.Is(err, errSessionNotInCache)
}
