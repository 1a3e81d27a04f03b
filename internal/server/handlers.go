package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/keagan/cutline/internal/compositor"
	"github.com/keagan/cutline/internal/pipeline"
	"github.com/keagan/cutline/internal/session"
	"github.com/keagan/cutline/internal/storage"
	"github.com/keagan/cutline/internal/timeline"
	"github.com/keagan/cutline/pkg/util"
)

func (s *Server) bindProject(c *gin.Context) (*pipeline.Project, bool) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	project, err := pipeline.ParseProject(raw, ".json")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	return project, true
}

// handleCompose renders the posted project and returns the video
func (s *Server) handleCompose(c *gin.Context) {
	project, ok := s.bindProject(c)
	if !ok {
		return
	}

	req, err := s.requester.Request(c.Request.Context(), project)
	if err != nil {
		s.fail(c, err)
		return
	}

	res, err := s.compositor.Compose(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.Header("X-Job-Id", res.JobID)
	c.Header("X-Elapsed-Ms", strconv.FormatInt(res.Elapsed.Milliseconds(), 10))
	c.Data(http.StatusOK, "video/mp4", res.Data)
}

// handlePlan returns the filter graph and arguments without rendering
func (s *Server) handlePlan(c *gin.Context) {
	project, ok := s.bindProject(c)
	if !ok {
		return
	}

	req, err := s.requester.Request(c.Request.Context(), project)
	if err != nil {
		s.fail(c, err)
		return
	}

	plan, err := compositor.BuildPlan(req)
	if err != nil {
		s.fail(c, err)
		return
	}

	inputs := make([]gin.H, 0, len(plan.Inputs))
	for _, in := range plan.Inputs {
		inputs = append(inputs, gin.H{"kind": in.Kind, "name": in.Name, "ref": in.Source.Ref})
	}
	c.JSON(http.StatusOK, gin.H{
		"inputs":      inputs,
		"filterGraph": plan.FilterGraph(),
		"args":        plan.Args(),
		"audioMap":    plan.AudioMap,
		"stages":      len(plan.Stages),
	})
}

// handleProgress streams compositor status as server-sent events
func (s *Server) handleProgress(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	updates := make(chan compositor.Status, 16)
	unsubscribe := s.compositor.Subscribe(func(st compositor.Status) {
		offerLatest(updates, st)
	})
	defer unsubscribe()

	c.SSEvent("status", s.compositor.Status())
	c.Writer.Flush()

	clientGone := c.Request.Context().Done()
	keepalive := time.NewTicker(s.keepalive)
	defer keepalive.Stop()

	for {
		select {
		case <-clientGone:
			s.logger.Debug().Msg("progress client disconnected")
			return
		case st := <-updates:
			c.SSEvent("status", st)
			c.Writer.Flush()
		case <-keepalive.C:
			if _, err := c.Writer.Write([]byte(": keepalive\n\n")); err != nil {
				return
			}
			c.Writer.Flush()
		}
	}
}

type projectRequest struct {
	Document    *timeline.Document `json:"document"`
	CurrentTime float64            `json:"currentTime"`
	Playing     bool               `json:"playing"`
	Language    string             `json:"language"`
}

// handleProject runs one projection pass over the posted document and
// returns the element views plus the patched document
func (s *Server) handleProject(c *gin.Context) {
	var body projectRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if body.Document == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "document is required"})
		return
	}

	state := session.New(body.Language)
	state.SetCurrentTime(body.CurrentTime)
	state.SetPlaying(body.Playing)

	projector := timeline.NewProjector(body.Document, timeline.Options{
		PixelsPerSecond:   s.config.Timeline.PixelsPerSecond,
		DefaultDurationMs: s.config.Timeline.DefaultDurationMs,
		LegacyPlayWindow:  s.config.Timeline.LegacyPlayWindow,
	})
	elements := projector.Project(state.Snapshot())
	maxEnd := timeline.MaxEndAt(elements)
	pps := s.config.Timeline.PixelsPerSecond

	c.JSON(http.StatusOK, gin.H{
		"elements":  elements,
		"maxEndAt":  maxEnd,
		"current":   util.FormatClock(util.SecondsFromPixels(body.CurrentTime, pps)),
		"total":     util.FormatClock(util.SecondsFromPixels(maxEnd, pps)),
		"languages": body.Document.Languages(),
		"document":  body.Document,
	})
}

func (s *Server) handleListDesigns(c *gin.Context) {
	list, err := s.designs.List(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	last, err := s.designs.LastID(c.Request.Context())
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"designs": list, "lastId": last})
}

func (s *Server) handleGetDesign(c *gin.Context) {
	design, err := s.designs.Load(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, design)
}

func (s *Server) handleGetPreview(c *gin.Context) {
	data, err := s.designs.Preview(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "image/jpeg", data)
}

type saveDesignRequest struct {
	Name     string          `json:"name"`
	Document json.RawMessage `json:"document"`
	// Preview is a base64 JPEG
	Preview []byte `json:"preview"`
}

func (s *Server) handleSaveDesign(c *gin.Context) {
	var body saveDesignRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(body.Document) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "document is required"})
		return
	}

	id, err := s.designs.Save(c.Request.Context(), c.Param("id"), body.Name, body.Document, body.Preview)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

func (s *Server) handleDeleteDesign(c *gin.Context) {
	if err := s.designs.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// offerLatest queues st without blocking. A slow client loses its oldest
// queued status, never the newest, so the terminal status always arrives.
func offerLatest(ch chan compositor.Status, st compositor.Status) {
	for {
		select {
		case ch <- st:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
