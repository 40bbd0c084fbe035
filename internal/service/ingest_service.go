package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"subsea-agent-be/internal/dto"
	"subsea-agent-be/internal/entity"
	"subsea-agent-be/internal/pkg/logger"
	"subsea-agent-be/internal/repository/unitofwork"
	"subsea-agent-be/pkg/embedding"
	"subsea-agent-be/pkg/events"
	pkgNats "subsea-agent-be/pkg/nats"
	"subsea-agent-be/pkg/pdfextract"
	"subsea-agent-be/pkg/splitter"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

const (
	// Chunking geometry for report text. Roughly a paragraph per chunk
	// with enough overlap to keep sentences that straddle a boundary.
	chunkSize    = 1000
	chunkOverlap = 150
)

// IIngestService turns report PDFs into embedded, searchable chunks.
// Uploads go through the message bus so the HTTP handler returns fast;
// the CLI calls IngestReport directly.
type IIngestService interface {
	QueueReport(ctx context.Context, report string, path string) error
	IngestReport(ctx context.Context, report string, pdf []byte) (int, error)
	Consume(ctx context.Context) error
}

type ingestService struct {
	pubSub         *gochannel.GoChannel
	topicName      string
	uowFactory     unitofwork.RepositoryFactory
	extractor      *pdfextract.Client
	embedder       embedding.EmbeddingProvider
	split          *splitter.Splitter
	eventPublisher *pkgNats.Publisher // nil disables telemetry events
	log            logger.ILogger
}

func NewIngestService(
	pubSub *gochannel.GoChannel,
	topicName string,
	uowFactory unitofwork.RepositoryFactory,
	extractor *pdfextract.Client,
	embedder embedding.EmbeddingProvider,
	eventPublisher *pkgNats.Publisher,
	log logger.ILogger,
) IIngestService {
	return &ingestService{
		pubSub:         pubSub,
		topicName:      topicName,
		uowFactory:     uowFactory,
		extractor:      extractor,
		embedder:       embedder,
		split:          splitter.New(chunkSize, chunkOverlap),
		eventPublisher: eventPublisher,
		log:            log,
	}
}

// ReportName derives the citation name from a PDF filename.
func ReportName(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (is *ingestService) QueueReport(ctx context.Context, report string, path string) error {
	payload, err := json.Marshal(dto.IngestReportMessage{Report: report, Path: path})
	if err != nil {
		return err
	}
	msg := message.NewMessage(uuid.NewString(), payload)
	return is.pubSub.Publish(is.topicName, msg)
}

func (is *ingestService) Consume(ctx context.Context) error {
	messages, err := is.pubSub.Subscribe(ctx, is.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			is.processMessage(ctx, msg)
		}
	}()
	return nil
}

func (is *ingestService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.IngestReportMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		is.log.Error("ingest", "invalid message payload", map[string]interface{}{
			"error": err.Error(),
		})
		msg.Ack() // malformed messages must not retry forever
		return
	}

	pdf, err := os.ReadFile(payload.Path)
	if err != nil {
		is.log.Error("ingest", "report file unreadable", map[string]interface{}{
			"report": payload.Report, "path": payload.Path, "error": err.Error(),
		})
		msg.Ack()
		return
	}

	if _, err := is.IngestReport(ctx, payload.Report, pdf); err != nil {
		is.log.Error("ingest", "report ingestion failed", map[string]interface{}{
			"report": payload.Report, "error": err.Error(),
		})
		msg.Nack()
		return
	}
	msg.Ack()
}

// IngestReport extracts, chunks and embeds one report. Existing chunks
// for the same report are replaced so re-uploads are idempotent.
func (is *ingestService) IngestReport(ctx context.Context, report string, pdf []byte) (int, error) {
	pages, err := is.extractor.ExtractPages(ctx, pdf)
	if err != nil {
		return 0, fmt.Errorf("extract pages: %w", err)
	}

	var chunks []*entity.ReportChunk
	now := time.Now()
	for _, page := range pages {
		for _, text := range is.split.Split(page.Text) {
			res, err := is.embedder.Generate(ctx, text, embedding.TaskRetrievalDocument)
			if err != nil {
				return 0, fmt.Errorf("embed chunk (page %d): %w", page.Number, err)
			}
			chunks = append(chunks, &entity.ReportChunk{
				Id:        uuid.New(),
				Report:    report,
				Page:      page.Number,
				Content:   text,
				Embedding: res.Embedding.Values,
				CreatedAt: now,
			})
		}
	}

	uow := is.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return 0, err
	}
	if err := uow.ReportChunkRepository().DeleteByReport(ctx, report); err != nil {
		_ = uow.Rollback()
		return 0, fmt.Errorf("delete old chunks: %w", err)
	}
	if len(chunks) > 0 {
		if err := uow.ReportChunkRepository().CreateBulk(ctx, chunks); err != nil {
			_ = uow.Rollback()
			return 0, fmt.Errorf("store chunks: %w", err)
		}
	}
	if err := uow.Commit(); err != nil {
		return 0, err
	}

	is.log.Info("ingest", "report ingested", map[string]interface{}{
		"report": report, "pages": len(pages), "chunks": len(chunks),
	})

	if is.eventPublisher != nil {
		if err := is.eventPublisher.Publish(ctx, events.NewReportIngested(report, len(chunks))); err != nil {
			is.log.Warn("ingest", "event publish failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
	return len(chunks), nil
}
