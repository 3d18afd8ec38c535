package handler

import (
	"bytes"
	"html/template"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/reelscript/api/internal/service"
	"github.com/reelscript/api/internal/store"
)

// ArtifactHandler serves the public read-only script page. The path token is
// format-checked before any store access, and malformed ids are
// indistinguishable from missing ones in the response.
type ArtifactHandler struct {
	artifacts store.ArtifactStore
	log       *zap.Logger
}

func NewArtifactHandler(artifacts store.ArtifactStore, log *zap.Logger) *ArtifactHandler {
	return &ArtifactHandler{artifacts: artifacts, log: log}
}

// Show handles GET /s/:publicId.
func (h *ArtifactHandler) Show(c *fiber.Ctx) error {
	publicID := c.Params("publicId")
	if !service.ValidPublicID(publicID) {
		return notFoundPage(c)
	}

	script, err := h.artifacts.GetByPublicID(c.Context(), publicID)
	if err != nil {
		h.log.Error("artifact lookup failed", zap.String("publicId", publicID), zap.Error(err))
		return notFoundPage(c)
	}
	if script == nil {
		return notFoundPage(c)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	// Artifacts are immutable once created.
	c.Set(fiber.HeaderCacheControl, "public, max-age=31536000, immutable")
	c.Set("X-Robots-Tag", "noindex")

	var buf bytes.Buffer
	if err := artifactTmpl.Execute(&buf, artifactPage{
		Text:     script.ResultText,
		ImageURL: script.ImageURL,
	}); err != nil {
		h.log.Error("artifact page render failed", zap.Error(err))
		return notFoundPage(c)
	}
	return c.Send(buf.Bytes())
}

func notFoundPage(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	c.Set("X-Robots-Tag", "noindex")
	return c.Status(fiber.StatusNotFound).SendString(notFoundHTML)
}

type artifactPage struct {
	Text     string
	ImageURL string
}

// html/template escapes Text; the page never embeds internal identifiers.
var artifactTmpl = template.Must(template.New("artifact").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta name="robots" content="noindex">
<title>Your reel script</title>
<style>
body{font-family:-apple-system,sans-serif;max-width:640px;margin:2rem auto;padding:0 1rem;color:#111}
pre{white-space:pre-wrap;background:#f6f6f6;border-radius:8px;padding:1rem}
img{max-width:100%;border-radius:8px}
button{padding:.5rem 1rem;border-radius:6px;border:1px solid #ccc;background:#fff;cursor:pointer}
</style>
</head>
<body>
<h1>Your reel script</h1>
{{if .ImageURL}}<img src="{{.ImageURL}}" alt="Script card">{{end}}
<pre id="script">{{.Text}}</pre>
<button onclick="navigator.clipboard.writeText(document.getElementById('script').innerText)">Copy script</button>
</body>
</html>
`))

const notFoundHTML = `<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><meta name="robots" content="noindex"><title>Not found</title></head>
<body><h1>Not found</h1><p>This link does not exist or has expired.</p></body>
</html>
`
