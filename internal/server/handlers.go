package server

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atikulmunna/logsift/internal/aggregator"
	"github.com/atikulmunna/logsift/internal/analyzer"
	"github.com/atikulmunna/logsift/internal/model"
	"github.com/atikulmunna/logsift/internal/source"
)

// multipart framing allowance on top of the file size limit
const multipartOverhead = 64 << 10

const (
	allowedMIMEType    = "text/plain"
	defaultRecentLimit = 20
	analysisIDHeader   = "X-Analysis-Id"
)

// handleAnalyze answers with the bare report; the stored analysis is
// addressed by the X-Analysis-Id and Location headers.
func (s *Server) handleAnalyze(c *gin.Context) {
	a, ok := s.analyzerFor(c)
	if !ok {
		return
	}

	// gzip and zstd bodies are decompressed; the limit applies to both sides.
	up, err := source.Read("request", http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadBytes), s.cfg.MaxUploadBytes)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || errors.Is(err, source.ErrTooLarge) {
			s.tooLarge(c)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}
	if up.Content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Log content is empty"})
		return
	}

	an, ok := s.analyze(c, a, up)
	if !ok {
		return
	}
	c.Header(analysisIDHeader, an.ID)
	c.Header("Location", "/api/analysis/"+an.ID)
	c.JSON(http.StatusOK, an.Report)
}

func (s *Server) handleUpload(c *gin.Context) {
	a, ok := s.analyzerFor(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadBytes+multipartOverhead)
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.tooLarge(c)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded."})
		return
	}
	if fh.Size > s.cfg.MaxUploadBytes {
		s.tooLarge(c)
		return
	}
	if mt, _, err := mime.ParseMediaType(fh.Header.Get("Content-Type")); err != nil || mt != allowedMIMEType {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "Invalid file type. Only text/plain files are allowed."})
		return
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read uploaded file"})
		return
	}
	defer f.Close()

	up, err := source.Read(fh.Filename, f, s.cfg.MaxUploadBytes)
	if err != nil {
		if errors.Is(err, source.ErrTooLarge) {
			s.tooLarge(c)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read uploaded file"})
		return
	}
	if up.Content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Log content is empty"})
		return
	}

	if an, ok := s.analyze(c, a, up); ok {
		c.JSON(http.StatusOK, an)
	}
}

func (s *Server) handleGetAnalysis(c *gin.Context) {
	an, ok := s.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, an)
}

// handleRecent lists stored analyses, most recent first, without records.
func (s *Server) handleRecent(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultRecentLimit)))
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
		return
	}

	recent := s.store.Recent(limit)
	items := make([]gin.H, 0, len(recent))
	for _, an := range recent {
		items = append(items, gin.H{
			"id":           an.ID,
			"source":       an.Source,
			"profile":      an.Profile,
			"createdAt":    an.CreatedAt,
			"totalRecords": an.Report.TotalRecords,
			"anomalies":    len(an.Report.Anomalies),
			"error":        an.Error,
		})
	}
	c.JSON(http.StatusOK, gin.H{"analyses": items})
}

func (s *Server) handleDelete(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid result ID"})
		return
	}
	if !s.store.Delete(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Result not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleGetSummary(c *gin.Context) {
	an, ok := s.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, aggregator.SummaryOf(an.Report))
}

func (s *Server) handleClear(c *gin.Context) {
	n := s.store.Clear()
	s.log.Info("cleared stored analyses", zap.Int("count", n))
	c.JSON(http.StatusOK, gin.H{"message": "All logs cleared successfully.", "deleted": n})
}

// analyze runs up, then stores and broadcasts the result. A failed analysis
// is answered with 500 here and reported as not ok.
func (s *Server) analyze(c *gin.Context, a *analyzer.Analyzer, up model.Upload) (model.Analysis, bool) {
	an := s.hub.RunWith(a, up)
	s.store.Put(an)
	s.hub.Publish(an)

	if an.Failed() {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "An unexpected error occurred", "id": an.ID})
		return an, false
	}
	return an, true
}

// analyzerFor resolves ?profile=, falling back to the configured default.
func (s *Server) analyzerFor(c *gin.Context) (*analyzer.Analyzer, bool) {
	p, err := analyzer.ProfileByName(c.DefaultQuery("profile", s.cfg.Profile))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	return s.analyzers[p.Name], true
}

func (s *Server) lookup(c *gin.Context) (model.Analysis, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid result ID"})
		return model.Analysis{}, false
	}
	an, ok := s.store.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Result not found"})
		return model.Analysis{}, false
	}
	return an, true
}

func (s *Server) tooLarge(c *gin.Context) {
	c.JSON(http.StatusRequestEntityTooLarge, gin.H{
		"error": fmt.Sprintf("File size exceeds the limit of %dMB.", s.cfg.MaxUploadBytes>>20),
	})
}
