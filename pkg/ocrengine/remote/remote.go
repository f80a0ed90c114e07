// Package remote implements the accurate, network-bound OCR engine backed
// by Google Document AI, returning text blocks in the engine's own
// declared page-dimension space rather than the input image's pixel
// space — the orchestrator's reconciler (see pkg/orchestrator) is
// responsible for scaling these into a column strip's coordinates.
//
// Grounded on the teacher's Document AI client and proto-to-structure
// conversion (pkg/gdocai/client.go's ProcessDocument, pkg/gdocai/text.go's
// textFromLayout, and pkg/gdocai/hocr.go's getHocrBoundingBox): the same
// documentai.NewDocumentProcessorClient/ProcessDocument call and the same
// normalized-vertex-times-page-dimension scaling to recover pixel boxes.
// Unlike the teacher, which sends whole PDFs and walks a full
// block/paragraph/line/token hierarchy to build hOCR, this engine sends a
// single column-strip image and flattens straight to token-level
// TextBlocks, since only token positions matter to the marker parser.
package remote

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/twoLoop-40/problem-cutter/pkg/errkind"
	"github.com/twoLoop-40/problem-cutter/pkg/geom"
	"github.com/twoLoop-40/problem-cutter/pkg/ocrengine"
)

// Config carries the Document AI processor coordinates and credentials.
// ProjectID and CredentialsFile are sourced from the REMOTE_OCR_APP_ID and
// REMOTE_OCR_APP_KEY environment variables (or the equivalent
// --remote-credentials-file flag) by internal/config; Location and
// ProcessorID come from the --remote-location and --remote-processor-id
// settings (flag, environment, or YAML file).
type Config struct {
	ProjectID       string
	Location        string
	ProcessorID     string
	CredentialsFile string
}

// ConfigFromCredentials maps the spec's generic remote credentials onto
// Document AI's specific fields: AppID names the GCP project and AppKey
// is the path to the service-account credentials file. location and
// processorID are not part of the generic credential pair and come from
// the job's other configuration settings instead.
func ConfigFromCredentials(creds ocrengine.RemoteCredentials, location, processorID string) Config {
	return Config{
		ProjectID:       creds.AppID,
		Location:        location,
		ProcessorID:     processorID,
		CredentialsFile: creds.AppKey,
	}
}

// resourceName builds the Document AI processor's fully qualified name.
func (c Config) resourceName() string {
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s", c.ProjectID, c.Location, c.ProcessorID)
}

// Engine is a Document-AI-backed ocrengine.Engine.
type Engine struct {
	cfg Config
}

// New constructs a remote OCR engine for the given processor.
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// ID identifies this engine for provenance tagging.
func (e *Engine) ID() string { return "remote" }

// Run sends img to Document AI and returns token-level text blocks in the
// processor's declared page-dimension space (Response.PageDims), per
// spec.md §4.3's remote-engine contract.
func (e *Engine) Run(ctx context.Context, img image.Image, hints ocrengine.LanguageHints, dpi int) (*ocrengine.Response, error) {
	start := time.Now()

	if e.cfg.ProjectID == "" || e.cfg.ProcessorID == "" || e.cfg.CredentialsFile == "" {
		return nil, errkind.New(errkind.RemoteUnavailable, "remote.Run", fmt.Errorf("missing Document AI credentials or processor configuration"))
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, errkind.New(errkind.OCRPermanent, "remote.Run", fmt.Errorf("encode image: %w", err))
	}

	endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", e.cfg.Location)
	client, err := documentai.NewDocumentProcessorClient(
		ctx,
		option.WithEndpoint(endpoint),
		option.WithCredentialsFile(e.cfg.CredentialsFile),
	)
	if err != nil {
		return nil, classifyClientError("remote.Run", err)
	}
	defer client.Close()

	req := &documentaipb.ProcessRequest{
		Name: e.cfg.resourceName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  buf.Bytes(),
				MimeType: "image/png",
			},
		},
		SkipHumanReview: true,
	}

	resp, err := client.ProcessDocument(ctx, req)
	if err != nil {
		return nil, classifyProcessError("remote.Run", err)
	}
	doc := resp.GetDocument()
	if doc == nil || len(doc.Pages) == 0 {
		return &ocrengine.Response{EngineID: e.ID(), Elapsed: time.Since(start)}, nil
	}

	page := doc.Pages[0]
	dims := ocrengine.Dimensions{}
	if d := page.GetDimension(); d != nil {
		dims.W = int(d.Width + 0.5)
		dims.H = int(d.Height + 0.5)
	}

	blocks := make([]ocrengine.TextBlock, 0, len(page.Tokens))
	for _, tok := range page.Tokens {
		r, confidence, text, ok := tokenToBlock(tok, page.GetDimension(), doc.Text)
		if !ok {
			continue
		}
		blocks = append(blocks, ocrengine.TextBlock{Text: text, BBox: r, Confidence: confidence, Engine: e.ID()})
	}

	return &ocrengine.Response{
		Blocks:   blocks,
		EngineID: e.ID(),
		PageDims: dims,
		Elapsed:  time.Since(start),
	}, nil
}

// tokenToBlock converts one Document AI token into a TextBlock, scaling
// its normalized bounding-polygon vertices by the page dimension the same
// way the teacher's getHocrBoundingBox does.
func tokenToBlock(tok *documentaipb.Document_Page_Token, dim *documentaipb.Document_Page_Dimension, fullText string) (geom.Rect, float64, string, bool) {
	layout := tok.GetLayout()
	if layout == nil || layout.BoundingPoly == nil || dim == nil {
		return geom.Rect{}, 0, "", false
	}
	vertices := layout.BoundingPoly.NormalizedVertices
	if len(vertices) < 4 {
		return geom.Rect{}, 0, "", false
	}

	minX := int(vertices[0].X*dim.Width + 0.5)
	minY := int(vertices[0].Y*dim.Height + 0.5)
	maxX := int(vertices[2].X*dim.Width + 0.5)
	maxY := int(vertices[2].Y*dim.Height + 0.5)
	if maxX <= minX || maxY <= minY {
		return geom.Rect{}, 0, "", false
	}

	r, err := geom.NewRect(minX, minY, maxX-minX, maxY-minY)
	if err != nil {
		return geom.Rect{}, 0, "", false
	}

	text := textFromLayout(layout, fullText)
	return r, float64(layout.Confidence), text, true
}

// textFromLayout resolves a layout's text anchor segments against the
// document's full text, mirroring pkg/gdocai/text.go's textFromLayout.
func textFromLayout(layout *documentaipb.Document_Page_Layout, fullText string) string {
	if layout == nil || layout.TextAnchor == nil {
		return ""
	}
	runes := []rune(fullText)
	total := len(runes)
	out := make([]rune, 0, 8)
	for _, seg := range layout.TextAnchor.TextSegments {
		start, end := int(seg.StartIndex), int(seg.EndIndex)
		if start < 0 {
			start = 0
		}
		if end > total {
			end = total
		}
		if start > end {
			start = end
		}
		out = append(out, runes[start:end]...)
	}
	return string(out)
}

// classifyClientError maps a client-construction failure to unavailable,
// since it almost always means missing or invalid credentials.
func classifyClientError(op string, err error) error {
	if os.IsNotExist(err) {
		return errkind.New(errkind.RemoteUnavailable, op, err)
	}
	return errkind.New(errkind.RemoteUnavailable, op, err)
}

// classifyProcessError maps a Document AI call failure to ocr_permanent
// or ocr_transient by inspecting the gRPC status code, per spec.md §7's
// error table: a corrupt-input or auth failure (InvalidArgument,
// PermissionDenied, Unauthenticated, FailedPrecondition, or NotFound on
// the processor resource) is permanent and must not burn the retry budget,
// escalating straight to remote_unavailable; anything else (Unavailable,
// DeadlineExceeded, ResourceExhausted, a non-gRPC transport error, ...)
// is left transient for the caller's retry policy (pkg/orchestrator).
func classifyProcessError(op string, err error) error {
	if isPermanentCode(status.Code(err)) {
		return errkind.New(errkind.OCRPermanent, op, err)
	}
	return errkind.New(errkind.OCRTransient, op, err)
}

func isPermanentCode(code codes.Code) bool {
	switch code {
	case codes.InvalidArgument, codes.PermissionDenied, codes.Unauthenticated,
		codes.NotFound, codes.FailedPrecondition:
		return true
	default:
		return false
	}
}
