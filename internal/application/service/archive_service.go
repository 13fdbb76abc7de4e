package service

import (
	"context"
	"io"

	"github.com/garyjia/image-annotation/internal/application/port"
	"github.com/garyjia/image-annotation/internal/application/workflow"
	"github.com/garyjia/image-annotation/internal/domain/apperr"
	"github.com/garyjia/image-annotation/internal/domain/entity"
	"github.com/garyjia/image-annotation/internal/domain/policy"
)

// ReviewQueuePage is one page of the review queue
type ReviewQueuePage struct {
	Items  []*entity.ReviewQueueItem `json:"items"`
	Total  int                       `json:"total"`
	Limit  int                       `json:"limit"`
	Offset int                       `json:"offset"`
}

// CompletedPage is one page of the Completed Archive
type CompletedPage struct {
	Records []*entity.CompletedRecord `json:"records"`
	Total   int                       `json:"total"`
	Limit   int                       `json:"limit"`
	Offset  int                       `json:"offset"`
}

// ArchiveService serves the reviewer-facing read views: the review queue and the Completed Archive
type ArchiveService interface {
	ReviewQueue(ctx context.Context, actor workflow.Actor, status entity.ReviewQueueStatus, page entity.Page) (*ReviewQueuePage, error)
	ListCompleted(ctx context.Context, actor workflow.Actor, page entity.Page) (*CompletedPage, error)

	// ExportCompleted renders the whole archive to w and returns the document's content type
	ExportCompleted(ctx context.Context, actor workflow.Actor, w io.Writer) (string, error)
}

// PageLimits bounds listing page sizes
type PageLimits struct {
	Default int
	Max     int
}

func (l PageLimits) clamp(page entity.Page) entity.Page {
	if page.Limit <= 0 {
		page.Limit = l.Default
	}
	if l.Max > 0 && page.Limit > l.Max {
		page.Limit = l.Max
	}
	if page.Offset < 0 {
		page.Offset = 0
	}
	return page
}

type archiveServiceImpl struct {
	annotationRepo port.AnnotationRepository
	completedRepo  port.CompletedRepository
	exporter       port.ArchiveExporter
	limits         PageLimits
	logger         Logger
}

// NewArchiveService creates a new ArchiveService
func NewArchiveService(
	annotationRepo port.AnnotationRepository,
	completedRepo port.CompletedRepository,
	exporter port.ArchiveExporter,
	limits PageLimits,
	logger Logger,
) ArchiveService {
	if limits.Default <= 0 {
		limits.Default = 20
	}
	return &archiveServiceImpl{
		annotationRepo: annotationRepo,
		completedRepo:  completedRepo,
		exporter:       exporter,
		limits:         limits,
		logger:         logger,
	}
}

func (s *archiveServiceImpl) ReviewQueue(ctx context.Context, actor workflow.Actor, status entity.ReviewQueueStatus, page entity.Page) (*ReviewQueuePage, error) {
	if err := policy.Authorize(actor.Role, policy.OpViewReviewQueue); err != nil {
		return nil, err
	}
	if status == "" {
		status = entity.QueuePending
	}
	if !status.IsValid() {
		return nil, apperr.Invalid("review queue status %q must be pending, approved, rejected or all", status)
	}
	page = s.limits.clamp(page)

	items, total, err := s.annotationRepo.ListForReview(ctx, status, page)
	if err != nil {
		return nil, apperr.Transient(err)
	}
	if items == nil {
		items = []*entity.ReviewQueueItem{}
	}

	return &ReviewQueuePage{Items: items, Total: total, Limit: page.Limit, Offset: page.Offset}, nil
}

func (s *archiveServiceImpl) ListCompleted(ctx context.Context, actor workflow.Actor, page entity.Page) (*CompletedPage, error) {
	if err := policy.Authorize(actor.Role, policy.OpViewArchive); err != nil {
		return nil, err
	}
	page = s.limits.clamp(page)

	records, total, err := s.completedRepo.List(ctx, page)
	if err != nil {
		return nil, apperr.Transient(err)
	}
	if records == nil {
		records = []*entity.CompletedRecord{}
	}

	return &CompletedPage{Records: records, Total: total, Limit: page.Limit, Offset: page.Offset}, nil
}

func (s *archiveServiceImpl) ExportCompleted(ctx context.Context, actor workflow.Actor, w io.Writer) (string, error) {
	if err := policy.Authorize(actor.Role, policy.OpExportArchive); err != nil {
		return "", err
	}

	// A zero limit reads the whole archive.
	records, _, err := s.completedRepo.List(ctx, entity.Page{})
	if err != nil {
		return "", apperr.Transient(err)
	}

	if err := s.exporter.Export(ctx, records, w); err != nil {
		s.logger.Error("Archive export failed", "records", len(records), "error", err)
		return "", err
	}

	s.logger.Info("Archive exported", "records", len(records), "actor_id", actor.UserID)
	return s.exporter.ContentType(), nil
}
