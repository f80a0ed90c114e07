package remote

import (
	"context"
	"errors"
	"image"
	"testing"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/twoLoop-40/problem-cutter/pkg/errkind"
	"github.com/twoLoop-40/problem-cutter/pkg/ocrengine"
)

func TestEngine_ID(t *testing.T) {
	e := New(Config{})
	if e.ID() != "remote" {
		t.Fatalf("ID()=%q, want %q", e.ID(), "remote")
	}
}

func TestEngine_Run_UnavailableWithoutCredentials(t *testing.T) {
	e := New(Config{})
	_, err := e.Run(context.Background(), image.NewGray(image.Rect(0, 0, 10, 10)), ocrengine.KoEn, 200)
	if errkind.KindOf(err) != errkind.RemoteUnavailable {
		t.Fatalf("kind=%v, want remote_unavailable", errkind.KindOf(err))
	}
}

func TestTokenToBlock_ScalesNormalizedVertices(t *testing.T) {
	dim := &documentaipb.Document_Page_Dimension{Width: 2923, Height: 8273}
	tok := &documentaipb.Document_Page_Token{
		Layout: &documentaipb.Document_Page_Layout{
			Confidence: 0.95,
			TextAnchor: &documentaipb.Document_TextAnchor{
				TextSegments: []*documentaipb.Document_TextAnchor_TextSegment{
					{StartIndex: 0, EndIndex: 2},
				},
			},
			BoundingPoly: &documentaipb.BoundingPoly{
				NormalizedVertices: []*documentaipb.NormalizedVertex{
					{X: 245.0 / 2923, Y: 2374.0 / 8273},
					{X: 270.0 / 2923, Y: 2374.0 / 8273},
					{X: 270.0 / 2923, Y: 2401.0 / 8273},
					{X: 245.0 / 2923, Y: 2401.0 / 8273},
				},
			},
		},
	}

	r, confidence, text, ok := tokenToBlock(tok, dim, "3.")
	if !ok {
		t.Fatal("want a valid block")
	}
	if r.X != 245 || r.Y != 2374 {
		t.Errorf("got rect %v, want top-left (245, 2374)", r)
	}
	if confidence != float64(float32(0.95)) {
		t.Errorf("confidence=%v, want 0.95", confidence)
	}
	if text != "3." {
		t.Errorf("text=%q, want %q", text, "3.")
	}
}

func TestTokenToBlock_RejectsDegenerateBox(t *testing.T) {
	dim := &documentaipb.Document_Page_Dimension{Width: 1000, Height: 1000}
	tok := &documentaipb.Document_Page_Token{
		Layout: &documentaipb.Document_Page_Layout{
			BoundingPoly: &documentaipb.BoundingPoly{
				NormalizedVertices: []*documentaipb.NormalizedVertex{
					{X: 0.5, Y: 0.5}, {X: 0.5, Y: 0.5}, {X: 0.5, Y: 0.5}, {X: 0.5, Y: 0.5},
				},
			},
		},
	}
	if _, _, _, ok := tokenToBlock(tok, dim, ""); ok {
		t.Fatal("want a zero-area box to be rejected")
	}
}

func TestClassifyProcessError_PermanentCodesDoNotMapToTransient(t *testing.T) {
	cases := []struct {
		code codes.Code
		want errkind.Kind
	}{
		{codes.InvalidArgument, errkind.OCRPermanent},
		{codes.PermissionDenied, errkind.OCRPermanent},
		{codes.Unauthenticated, errkind.OCRPermanent},
		{codes.NotFound, errkind.OCRPermanent},
		{codes.FailedPrecondition, errkind.OCRPermanent},
		{codes.Unavailable, errkind.OCRTransient},
		{codes.DeadlineExceeded, errkind.OCRTransient},
		{codes.ResourceExhausted, errkind.OCRTransient},
	}
	for _, c := range cases {
		err := classifyProcessError("remote.Run", status.Error(c.code, "boom"))
		if errkind.KindOf(err) != c.want {
			t.Errorf("code=%v: kind=%v, want %v", c.code, errkind.KindOf(err), c.want)
		}
	}
}

func TestClassifyProcessError_NonGRPCErrorIsTransient(t *testing.T) {
	err := classifyProcessError("remote.Run", errors.New("connection reset"))
	if errkind.KindOf(err) != errkind.OCRTransient {
		t.Fatalf("kind=%v, want ocr_transient", errkind.KindOf(err))
	}
}

func TestTextFromLayout_ResolvesSegments(t *testing.T) {
	layout := &documentaipb.Document_Page_Layout{
		TextAnchor: &documentaipb.Document_TextAnchor{
			TextSegments: []*documentaipb.Document_TextAnchor_TextSegment{
				{StartIndex: 2, EndIndex: 5},
			},
		},
	}
	got := textFromLayout(layout, "ab123cd")
	if got != "123" {
		t.Fatalf("got %q, want %q", got, "123")
	}
}
