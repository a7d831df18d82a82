package handlers

import (
  "fmt"
  "io"
  "mime/multipart"
  "net/http"
  "github.com/gin-gonic/gin"
  "github.com/verdantiq/carbonmrv-backend/internal/logger"
  "github.com/verdantiq/carbonmrv-backend/internal/services"
)

const maxDocumentBytes = 20 << 20

type DocumentHandler struct {
  log               *logger.Logger
  extractionService services.ExtractionService
}

func NewDocumentHandler(baseLog *logger.Logger, extractionService services.ExtractionService) *DocumentHandler {
  return &DocumentHandler{
    log:               baseLog.Handler("DocumentHandler"),
    extractionService: extractionService,
  }
}

// POST /api/documents/extract
// Multipart upload; "file" for a single document, "files" for a batch.
func (h *DocumentHandler) Extract(c *gin.Context) {
  owner, ok := ownerFromContext(c)
  if !ok {
    RespondError(c, http.StatusUnauthorized, "identity_required", fmt.Errorf("authentication or session id required"))
    return
  }
  form, err := c.MultipartForm()
  if err != nil {
    RespondError(c, http.StatusBadRequest, "bad_multipart", err)
    return
  }
  files := form.File["files"]
  if len(files) == 0 {
    files = form.File["file"]
  }
  if len(files) == 0 {
    RespondError(c, http.StatusBadRequest, "no_files", fmt.Errorf("no files in upload"))
    return
  }

  inputs := make([]services.ExtractInput, 0, len(files))
  for _, fh := range files {
    data, rErr := readUpload(fh)
    if rErr != nil {
      RespondError(c, http.StatusBadRequest, "bad_upload", rErr)
      return
    }
    inputs = append(inputs, services.ExtractInput{
      Data:         data,
      MimeType:     fh.Header.Get("Content-Type"),
      OriginalName: fh.Filename,
      Owner:        owner,
    })
  }

  if len(inputs) == 1 {
    result, xErr := h.extractionService.Extract(c.Request.Context(), inputs[0])
    if xErr != nil && result == nil {
      RespondServiceError(c, xErr)
      return
    }
    // duplicate blocks come back with a result and an explanatory error;
    // the result carries the in-band flag
    RespondOK(c, result)
    return
  }

  results := h.extractionService.ExtractBatch(c.Request.Context(), inputs)
  RespondOK(c, gin.H{"results": results})
}

// GET /api/documents
func (h *DocumentHandler) List(c *gin.Context) {
  owner, ok := ownerFromContext(c)
  if !ok {
    RespondError(c, http.StatusUnauthorized, "identity_required", fmt.Errorf("authentication or session id required"))
    return
  }
  docs, err := h.extractionService.ListDocuments(c.Request.Context(), owner)
  if err != nil {
    RespondServiceError(c, err)
    return
  }
  RespondOK(c, gin.H{"documents": docs})
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
  if fh.Size > maxDocumentBytes {
    return nil, fmt.Errorf("file %s exceeds the %d byte limit", fh.Filename, maxDocumentBytes)
  }
  f, err := fh.Open()
  if err != nil {
    return nil, fmt.Errorf("open upload %s: %w", fh.Filename, err)
  }
  defer f.Close()
  data, err := io.ReadAll(io.LimitReader(f, maxDocumentBytes+1))
  if err != nil {
    return nil, fmt.Errorf("read upload %s: %w", fh.Filename, err)
  }
  if len(data) > maxDocumentBytes {
    return nil, fmt.Errorf("file %s exceeds the %d byte limit", fh.Filename, maxDocumentBytes)
  }
  return data, nil
}
