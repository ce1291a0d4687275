package engine

import (
	"context"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"github.com/rotisserie/eris"
)

// Tesseract runs OCR through a local Tesseract installation via gosseract.
// A fresh client is created per call; gosseract clients are not safe for
// concurrent use.
type Tesseract struct {
	languages     []string
	clientFactory func() *gosseract.Client
}

// NewTesseract creates a Tesseract engine. With no languages, Tesseract's
// default ("eng") applies.
func NewTesseract(languages []string) *Tesseract {
	return &Tesseract{
		languages:     languages,
		clientFactory: gosseract.NewClient,
	}
}

func (t *Tesseract) Name() string { return "tesseract" }

// Recognize runs Tesseract on the image and returns the trimmed text.
func (t *Tesseract) Recognize(ctx context.Context, imagePath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c := t.clientFactory()
	defer c.Close() //nolint:errcheck

	if err := c.SetImage(imagePath); err != nil {
		return "", eris.Wrapf(err, "tesseract: set image %s", imagePath)
	}
	if len(t.languages) > 0 {
		if err := c.SetLanguage(t.languages...); err != nil {
			return "", eris.Wrap(err, "tesseract: set languages")
		}
	}

	text, err := c.Text()
	if err != nil {
		return "", eris.Wrapf(err, "tesseract: recognize %s", imagePath)
	}
	return strings.TrimSpace(text), nil
}
