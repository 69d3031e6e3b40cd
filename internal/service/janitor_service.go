package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kasi-it/incident-desk/internal/models"
	"github.com/kasi-it/incident-desk/pkg/jobs"
	"github.com/kasi-it/incident-desk/pkg/storage"
)

// uploadLister enumerates and removes files in the upload area.
type uploadLister interface {
	List() ([]storage.UploadInfo, error)
	Delete(filename string) error
}

// ticketLister provides the attachment references currently in use.
type ticketLister interface {
	List(ctx context.Context) ([]models.Ticket, error)
}

// JanitorService sweeps the upload area for files no ticket references
// any more, keeping the attachments-to-files mapping one-to-one. Sweeps
// run through the job queue so a slow filesystem never blocks the
// scheduler tick.
type JanitorService struct {
	uploads  uploadLister
	store    ticketLister
	mirror   ticketMirrorStore
	queue    *jobs.Queue
	graceAge time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// JanitorServiceParams bundles the janitor dependencies.
type JanitorServiceParams struct {
	Uploads  uploadLister
	Store    ticketLister
	Mirror   ticketMirrorStore
	GraceAge time.Duration
	Logger   *zap.Logger
	Now      func() time.Time
}

// NewJanitorService constructs the janitor and its backing queue.
func NewJanitorService(p JanitorServiceParams) *JanitorService {
	if p.GraceAge <= 0 {
		p.GraceAge = time.Hour
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	s := &JanitorService{
		uploads:  p.Uploads,
		store:    p.Store,
		mirror:   p.Mirror,
		graceAge: p.GraceAge,
		logger:   p.Logger,
		now:      p.Now,
	}
	s.queue = jobs.NewQueue("upload-janitor", s.handleSweep, jobs.QueueConfig{
		Workers:    1,
		MaxRetries: 2,
		RetryDelay: 30 * time.Second,
		Logger:     p.Logger,
	})
	return s
}

// Start launches the queue workers.
func (s *JanitorService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the queue workers.
func (s *JanitorService) Stop() {
	s.queue.Stop()
}

// Trigger enqueues one sweep.
func (s *JanitorService) Trigger() {
	job := jobs.Job{ID: uuid.NewString(), Type: "sweep"}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("enqueue janitor sweep", zap.Error(err))
	}
}

// Run ticks a sweep on the given interval until the context ends.
func (s *JanitorService) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Trigger()
		}
	}
}

// handleSweep deletes upload files older than the grace age that no
// ticket references. Files newer than the grace age are left alone: an
// in-flight ticket submission may not have persisted its attachment list
// yet.
func (s *JanitorService) handleSweep(ctx context.Context, _ jobs.Job) error {
	referenced, err := s.referencedAttachments(ctx)
	if err != nil {
		return err
	}

	uploads, err := s.uploads.List()
	if err != nil {
		return err
	}

	cutoff := s.now().Add(-s.graceAge)
	removed := 0
	for _, upload := range uploads {
		if upload.ModTime.After(cutoff) {
			continue
		}
		if _, ok := referenced[upload.Name]; ok {
			continue
		}
		if err := s.uploads.Delete(upload.Name); err != nil {
			s.logger.Warn("delete orphaned upload", zap.String("file", upload.Name), zap.Error(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		s.logger.Info("janitor sweep removed orphaned uploads", zap.Int("removed", removed))
	}
	return nil
}

// referencedAttachments collects every attachment token currently held
// by a ticket, preferring the record store and falling back to the
// mirror file.
func (s *JanitorService) referencedAttachments(ctx context.Context) (map[string]struct{}, error) {
	tickets, err := s.store.List(ctx)
	if err != nil {
		s.logger.Warn("janitor list from store failed, using mirror", zap.Error(err))
		tickets, err = s.mirror.AllTickets()
		if err != nil {
			return nil, err
		}
	}
	referenced := make(map[string]struct{})
	for _, t := range tickets {
		for _, name := range t.Attachments {
			referenced[name] = struct{}{}
		}
	}
	return referenced, nil
}
