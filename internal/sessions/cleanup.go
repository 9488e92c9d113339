package sessions

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser accepts descriptor schedules ("@every 24h") alongside standard
// five-field expressions.
var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// evictLocked deletes least-recently-active sessions until the store is
// under MaxSessions, skipping the current session and the PreserveRecent
// most recent. Called before minting a new session.
func (s *Store) evictLocked() error {
	sessions, err := s.listLocked()
	if err != nil {
		return err
	}
	if len(sessions) < s.opts.MaxSessions {
		return nil
	}

	current, _ := s.currentIDLocked()
	protected := make(map[string]bool, s.opts.PreserveRecent+1)
	if current != "" {
		protected[current] = true
	}
	for i := 0; i < len(sessions) && i < s.opts.PreserveRecent; i++ {
		protected[sessions[i].ID] = true
	}

	// listLocked sorts newest first; walk the tail oldest-up.
	evicted := 0
	need := len(sessions) - s.opts.MaxSessions + 1
	for i := len(sessions) - 1; i >= 0 && evicted < need; i-- {
		sess := sessions[i]
		if protected[sess.ID] {
			continue
		}
		if err := s.removeFilesLocked(sess.ID); err != nil {
			return err
		}
		s.logger.Info("evicted session over cap", "id", sess.ID, "title", sess.Title)
		evicted++
	}
	return nil
}

// ManualCleanup deletes sessions inactive for more than MaxInactiveDays,
// sparing the current session and the PreserveRecent most recent. Returns
// the number removed.
func (s *Store) ManualCleanup() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cleanupLocked()
}

func (s *Store) cleanupLocked() (int, error) {
	if s.opts.MaxInactiveDays <= 0 {
		return 0, nil
	}
	sessions, err := s.listLocked()
	if err != nil {
		return 0, err
	}

	current, _ := s.currentIDLocked()
	protected := make(map[string]bool, s.opts.PreserveRecent+1)
	if current != "" {
		protected[current] = true
	}
	for i := 0; i < len(sessions) && i < s.opts.PreserveRecent; i++ {
		protected[sessions[i].ID] = true
	}

	cutoff := s.now().AddDate(0, 0, -s.opts.MaxInactiveDays)
	removed := 0
	for _, sess := range sessions {
		if protected[sess.ID] || !sess.LastActiveAt.Before(cutoff) {
			continue
		}
		if err := s.removeFilesLocked(sess.ID); err != nil {
			return removed, err
		}
		s.logger.Info("cleaned up inactive session",
			"id", sess.ID, "title", sess.Title, "last_active", sess.LastActiveAt)
		removed++
	}
	return removed, nil
}

// StartCleanup launches the background cleanup loop on the configured
// schedule. No-op when AutoCleanup is off or the loop already runs.
func (s *Store) StartCleanup() error {
	s.cleanupMu.Lock()
	defer s.cleanupMu.Unlock()

	if !s.opts.AutoCleanup || s.running {
		return nil
	}
	schedule, err := cronParser.Parse(fmt.Sprintf("@every %s", s.opts.CleanupEvery))
	if err != nil {
		return fmt.Errorf("parse cleanup schedule: %w", err)
	}

	s.running = true
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.cleanupLoop(schedule)

	s.logger.Info("session cleanup started", "every", s.opts.CleanupEvery)
	return nil
}

func (s *Store) cleanupLoop(schedule cron.Schedule) {
	defer s.wg.Done()
	for {
		next := schedule.Next(s.now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-s.stop:
			timer.Stop()
			return
		case <-timer.C:
			removed, err := s.ManualCleanup()
			if err != nil {
				s.logger.Warn("session cleanup failed", "error", err)
				continue
			}
			if removed > 0 {
				s.logger.Info("session cleanup pass", "removed", removed)
			}
		}
	}
}

// StopCleanup stops the background loop and waits for it to exit.
func (s *Store) StopCleanup() {
	s.cleanupMu.Lock()
	defer s.cleanupMu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	close(s.stop)
	s.wg.Wait()
}
