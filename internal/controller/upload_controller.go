package controller

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"subsea-agent-be/internal/dto"
	"subsea-agent-be/internal/pkg/serverutils"
	"subsea-agent-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IUploadController interface {
	RegisterRoutes(r fiber.Router)
	UploadReport(ctx *fiber.Ctx) error
	ClassifyImage(ctx *fiber.Ctx) error
}

type uploadController struct {
	ingest     service.IIngestService
	vision     service.IVisionService
	reportsDir string
}

func NewUploadController(ingest service.IIngestService, vision service.IVisionService, reportsDir string) IUploadController {
	return &uploadController{
		ingest:     ingest,
		vision:     vision,
		reportsDir: reportsDir,
	}
}

func (c *uploadController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/upload/v1")
	h.Post("/report", c.UploadReport)
	h.Post("/image", c.ClassifyImage)
}

// UploadReport stores the PDF and queues it for ingestion. The response
// returns before chunking finishes; ingestion runs on the bus consumer.
func (c *uploadController) UploadReport(ctx *fiber.Ctx) error {
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "missing file field")
	}
	if !strings.EqualFold(filepath.Ext(fileHeader.Filename), ".pdf") {
		return fiber.NewError(fiber.StatusBadRequest, "only PDF reports are accepted")
	}

	if err := os.MkdirAll(c.reportsDir, 0o755); err != nil {
		return err
	}
	dest := filepath.Join(c.reportsDir, filepath.Base(fileHeader.Filename))
	if err := ctx.SaveFile(fileHeader, dest); err != nil {
		return err
	}

	report := service.ReportName(fileHeader.Filename)
	if err := c.ingest.QueueReport(ctx.Context(), report, dest); err != nil {
		return err
	}

	return serverutils.SuccessResponse(ctx, dto.UploadReportResponse{
		Report: report,
		Status: "queued",
	})
}

func (c *uploadController) ClassifyImage(ctx *fiber.Ctx) error {
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "missing file field")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return err
	}

	res, err := c.vision.ClassifyImage(ctx.Context(), raw)
	if err != nil {
		return err
	}
	return serverutils.SuccessResponse(ctx, res)
}
